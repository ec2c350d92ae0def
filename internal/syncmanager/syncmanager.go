/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package syncmanager keeps one deck's tempo and beat phase locked to
// another's: tempo matching every callback, plus one-shot phase alignment at
// state transitions and an optional bounded steady-state drift corrector
// (spec.md §4.3).
package syncmanager

import (
	"math"
	"sync"

	"github.com/friendsincode/deckmix/internal/status"
)

// State is a sync slot's position in the idle/armed/aligned state machine.
type State string

const (
	Idle    State = "idle"
	Armed   State = "armed"
	Aligned State = "aligned"
)

// driftCorrectionPeriodCallbacks is "every K callbacks" from spec.md §4.3.
const driftCorrectionPeriodCallbacks = 50

// maxDriftCorrectionSeconds bounds a single phase nudge so it stays below
// the filter's inaudible-seek threshold.
const maxDriftCorrectionSeconds = 0.050

// Deck is the subset of deck.Deck the sync manager drives. Kept as an
// interface so it can be exercised with fakes in tests without an import
// cycle on the deck package.
type Deck interface {
	ID() int
	SampleRate() int
	IsPlaying() bool
	BPM() float64
	BeatOffset() float64
	Cursor() int64
	PositionSeconds() float64
	SetTempo(ratio float64)
	SetPositionFrames(frame int64)
	Play(startFrame *int64) error
}

// Manager tracks a single slave/master relation; a two-deck engine never
// needs more than one sync slot.
type Manager struct {
	mu                    sync.Mutex
	state                 State
	slaveID, masterID     int
	enableDriftCorrection bool
	callbackCount         uint64
}

// New constructs an idle sync manager. enableDriftCorrection toggles the
// optional closed-loop phase corrector in Update; the simplest correct
// implementation (spec.md §4.3) ships it disabled.
func New(enableDriftCorrection bool) *Manager {
	return &Manager{state: Idle, slaveID: -1, masterID: -1, enableDriftCorrection: enableDriftCorrection}
}

// State returns the current state-machine state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Enable records the slave/master relation and arms the slot. No immediate
// side effect on deck state — update begins matching tempo on the next
// callback.
func (m *Manager) Enable(slave, master Deck) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slaveID = slave.ID()
	m.masterID = master.ID()
	m.state = Armed
}

// Disable clears the relation if id is the recorded slave.
func (m *Manager) Disable(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slaveID != id {
		return
	}
	m.slaveID, m.masterID = -1, -1
	m.state = Idle
}

// AlignNow immediately sets the slave's tempo ratio to master_bpm/slave_bpm
// and snaps the slave's cursor so its beat phase matches the master's,
// without starting playback. Arms and moves the slot to Aligned.
func (m *Manager) AlignNow(slave, master Deck) error {
	if err := validateBPMs(slave, master); err != nil {
		return err
	}

	rate := slave.SampleRate()
	slave.SetTempo(master.BPM() / slave.BPM())

	masterPhase := beatPhase(master.Cursor(), master.BeatOffset(), rate, master.BPM())
	fpb := framesPerBeat(rate, slave.BPM())
	offsetFrames := int64(math.Round(slave.BeatOffset() * float64(rate)))
	rel := slave.Cursor() - offsetFrames
	beatIndex := floorDiv(rel, fpb)
	target := offsetFrames + beatIndex*fpb + int64(math.Round(masterPhase*float64(fpb)))
	slave.SetPositionFrames(target)

	m.mu.Lock()
	m.slaveID, m.masterID = slave.ID(), master.ID()
	m.state = Aligned
	m.mu.Unlock()
	return nil
}

// PlaySynced starts the slave so its first downbeat emerges at the same
// wall-clock moment as the master's next downbeat (spec.md §4.3).
func (m *Manager) PlaySynced(slave, master Deck) error {
	if err := validateBPMs(slave, master); err != nil {
		return err
	}
	if !master.IsPlaying() {
		return status.New(status.InvalidArgument, "master deck is not playing")
	}

	rate := slave.SampleRate()
	bpmM, bpmS := master.BPM(), slave.BPM()
	spbM := 60.0 / bpmM
	spbS := 60.0 / bpmS
	r := bpmM / bpmS

	elapsed := math.Mod(master.PositionSeconds()-master.BeatOffset(), spbM)
	if elapsed < 0 {
		elapsed += spbM
	}
	tNext := spbM - elapsed

	startSeconds := slave.BeatOffset() - tNext*r
	for startSeconds < 0 {
		startSeconds += spbS
	}
	startFrame := int64(math.Round(startSeconds * float64(rate)))

	slave.SetTempo(r)
	if err := slave.Play(&startFrame); err != nil {
		return err
	}

	m.mu.Lock()
	m.slaveID, m.masterID = slave.ID(), master.ID()
	m.state = Aligned
	m.mu.Unlock()
	return nil
}

// Update is invoked once per audio callback, before mixing. If a slot is
// Armed or Aligned and both decks are playing, it writes the slave's tempo
// ratio. An Aligned slot drops to Armed when either deck is paused. Only
// while Aligned, every driftCorrectionPeriodCallbacks callbacks (and only
// when drift correction is enabled), it nudges the slave's phase by at most
// maxDriftCorrectionSeconds.
func (m *Manager) Update(decks []Deck) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Idle {
		return
	}
	slave, master := findDeck(decks, m.slaveID), findDeck(decks, m.masterID)
	if slave == nil || master == nil {
		return
	}
	if !slave.IsPlaying() || !master.IsPlaying() {
		m.state = Armed
		return
	}

	if slave.BPM() > 0 && master.BPM() > 0 {
		slave.SetTempo(master.BPM() / slave.BPM())
	}
	if m.state != Aligned {
		return
	}

	m.callbackCount++
	if !m.enableDriftCorrection || m.callbackCount%driftCorrectionPeriodCallbacks != 0 {
		return
	}
	m.correctPhase(slave, master)
}

func (m *Manager) correctPhase(slave, master Deck) {
	rate := slave.SampleRate()
	if slave.BPM() <= 0 || master.BPM() <= 0 {
		return
	}

	masterPhase := beatPhase(master.Cursor(), master.BeatOffset(), rate, master.BPM())
	slavePhase := beatPhase(slave.Cursor(), slave.BeatOffset(), rate, slave.BPM())

	diff := masterPhase - slavePhase
	for diff > 0.5 {
		diff -= 1
	}
	for diff <= -0.5 {
		diff += 1
	}

	fpb := framesPerBeat(rate, slave.BPM())
	correctionFrames := int64(diff * float64(fpb))

	maxFrames := int64(maxDriftCorrectionSeconds * float64(rate))
	if correctionFrames > maxFrames {
		correctionFrames = maxFrames
	}
	if correctionFrames < -maxFrames {
		correctionFrames = -maxFrames
	}
	if correctionFrames == 0 {
		return
	}
	slave.SetPositionFrames(slave.Cursor() + correctionFrames)
}

func validateBPMs(slave, master Deck) error {
	if slave.BPM() <= 0 || master.BPM() <= 0 {
		return status.New(status.InvalidArgument, "both decks must have an analyzed bpm before syncing")
	}
	return nil
}

func findDeck(decks []Deck, id int) Deck {
	for _, d := range decks {
		if d.ID() == id {
			return d
		}
	}
	return nil
}

// framesPerBeat converts a BPM at a sample rate into frames per beat.
func framesPerBeat(rate int, bpm float64) int64 {
	return int64(math.Round(60 * float64(rate) / bpm))
}

// beatPhase returns the fraction, in [0,1), of the way through the current
// beat that frame sits at, given the track's beat offset.
func beatPhase(frame int64, offsetSeconds float64, rate int, bpm float64) float64 {
	fpb := framesPerBeat(rate, bpm)
	if fpb <= 0 {
		return 0
	}
	offsetFrames := int64(math.Round(offsetSeconds * float64(rate)))
	rel := frame - offsetFrames
	m := rel % fpb
	if m < 0 {
		m += fpb
	}
	return float64(m) / float64(fpb)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
