/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package deck implements a single playback unit of the mixing core: load,
// transport, tempo/pitch/EQ parameters, and the per-callback read path
// (spec.md §4.1).
package deck

import (
	"sync"

	"github.com/friendsincode/deckmix/internal/atomicx"
	"github.com/friendsincode/deckmix/internal/audiobuffer"
	"github.com/friendsincode/deckmix/internal/dsp"
	"github.com/friendsincode/deckmix/internal/events"
	"github.com/friendsincode/deckmix/internal/status"
	"github.com/rs/zerolog"
)

const (
	// pullChunkFrames is the size of the chunk pulled from the source
	// buffer and pushed into the tempo filter on the filtered read path.
	pullChunkFrames = 4096

	// fastPathTempoTolerance and fastPathPitchTolerance bound how close to
	// unity tempo/pitch must be for read() to bypass the filter entirely.
	fastPathTempoTolerance = 0.001 // 0.1%
	fastPathPitchTolerance = 0.1   // semitones

	MinTempoRatio = 0.5
	MaxTempoRatio = 2.0
	MinPitch      = -12.0
	MaxPitch      = 12.0
	MinGain       = 0.0
	MaxGain       = 2.0
)

// Deck is a single playback unit. The zero value is not usable; construct
// with New.
type Deck struct {
	id         int
	sampleRate int

	// mu serializes load/seek/play(start_frame) against read, and guards
	// the cursor, playing flag, and filter/EQ state they touch together
	// (spec.md §5: "a transition from paused to playing ... is atomic with
	// respect to the next read").
	mu      sync.Mutex
	buffer  *audiobuffer.Buffer
	cursor  int64
	playing bool

	tempoRatio *atomicx.Float64
	pitch      *atomicx.Float64
	volume     *atomicx.Float64
	bpm        *atomicx.Float64
	beatOffset *atomicx.Float64

	filter dsp.TempoFilter
	eq     *dsp.EQ

	bus    *events.Bus
	logger zerolog.Logger

	chunkBuf []float32 // scratch for the filtered-path pull, reused across reads
}

// New constructs a deck at sampleRate, paused, with unity parameters.
func New(id, sampleRate int, filter dsp.TempoFilter, bus *events.Bus, logger zerolog.Logger) *Deck {
	return &Deck{
		id:         id,
		sampleRate: sampleRate,
		tempoRatio: atomicx.NewFloat64(1.0),
		pitch:      atomicx.NewFloat64(0),
		volume:     atomicx.NewFloat64(1.0),
		bpm:        atomicx.NewFloat64(0),
		beatOffset: atomicx.NewFloat64(0),
		filter:     filter,
		eq:         dsp.NewEQ(sampleRate),
		bus:        bus,
		logger:     logger.With().Int("deck", id).Logger(),
		chunkBuf:   make([]float32, pullChunkFrames*2),
	}
}

// ID returns the deck's identifier (0 or 1).
func (d *Deck) ID() int { return d.id }

// SampleRate returns the deck's fixed sample rate.
func (d *Deck) SampleRate() int { return d.sampleRate }

// Load replaces any loaded buffer, resets the cursor, clears the filter,
// and leaves the deck paused.
func (d *Deck) Load(buf *audiobuffer.Buffer) error {
	if buf == nil {
		return status.New(status.InvalidArgument, "buffer is nil")
	}
	if buf.SampleRate() != d.sampleRate {
		return status.New(status.InvalidArgument, "buffer sample rate does not match engine sample rate")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.buffer = buf
	d.cursor = 0
	d.playing = false
	d.filter.Clear()
	return nil
}

// Unload discards the loaded buffer, leaving the deck empty and paused.
func (d *Deck) Unload() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buffer = nil
	d.cursor = 0
	d.playing = false
	d.filter.Clear()
}

// Play resumes playback from the current cursor. If startFrame is non-nil,
// the cursor is set and the filter cleared atomically before the playing
// flag is raised (spec.md §4.1).
func (d *Deck) Play(startFrame *int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.buffer == nil {
		return status.New(status.InvalidArgument, "no buffer loaded")
	}
	if startFrame != nil {
		d.cursor = clampFrame(*startFrame, d.buffer.Frames())
		d.filter.Clear()
	}
	d.playing = true
	return nil
}

// Pause stops advancing the cursor but leaves it in place.
func (d *Deck) Pause() {
	d.mu.Lock()
	d.playing = false
	d.mu.Unlock()
}

// Stop pauses and resets the cursor to 0, clearing the filter.
func (d *Deck) Stop() {
	d.mu.Lock()
	d.playing = false
	d.cursor = 0
	d.filter.Clear()
	d.mu.Unlock()
}

// Seek converts seconds to a source frame index, clamps it, sets the
// cursor, and clears the filter. In-flight filtered samples are discarded.
func (d *Deck) Seek(seconds float64) error {
	if seconds < 0 {
		return status.New(status.InvalidArgument, "seek position must be non-negative")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.buffer == nil {
		return status.New(status.InvalidArgument, "no buffer loaded")
	}
	frame := int64(seconds * float64(d.sampleRate))
	d.cursor = clampFrame(frame, d.buffer.Frames())
	d.filter.Clear()
	d.eq.Reset()
	return nil
}

// SetPositionFrames sets the cursor directly and clears the filter, without
// touching the playing flag. Used by the sync manager's align_now, which
// snaps phase without starting playback, and by its drift corrector, whose
// nudges therefore also clear the filter.
func (d *Deck) SetPositionFrames(frame int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	total := int64(0)
	if d.buffer != nil {
		total = d.buffer.Frames()
	}
	d.cursor = clampFrame(frame, total)
	d.filter.Clear()
}

func clampFrame(frame, total int64) int64 {
	if frame < 0 {
		return 0
	}
	if frame > total {
		return total
	}
	return frame
}

// Cursor returns the current source frame cursor.
func (d *Deck) Cursor() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cursor
}

// IsPlaying reports the deck's playing flag.
func (d *Deck) IsPlaying() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playing
}

// PositionSeconds returns the cursor expressed in seconds.
func (d *Deck) PositionSeconds() float64 {
	return float64(d.Cursor()) / float64(d.sampleRate)
}

// Buffer returns the currently loaded buffer, or nil if none is loaded.
// Intended for analysis (reading samples), never for mutation.
func (d *Deck) Buffer() *audiobuffer.Buffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buffer
}

// DurationSeconds returns the loaded track's duration, or 0 if none is loaded.
func (d *Deck) DurationSeconds() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.buffer == nil {
		return 0
	}
	return d.buffer.Duration()
}

// SetTempo forwards the tempo ratio to the filter, clamped to [0.5, 2.0].
func (d *Deck) SetTempo(ratio float64) {
	ratio = clampFloat(ratio, MinTempoRatio, MaxTempoRatio)
	d.tempoRatio.Store(ratio)
	d.filter.SetRatio(ratio)
}

// TempoRatio returns the current tempo ratio.
func (d *Deck) TempoRatio() float64 { return d.tempoRatio.Load() }

// SetPitch forwards the pitch shift (semitones) to the filter, clamped to
// [-12, 12].
func (d *Deck) SetPitch(semitones float64) {
	semitones = clampFloat(semitones, MinPitch, MaxPitch)
	d.pitch.Store(semitones)
	d.filter.SetPitch(semitones)
}

// Pitch returns the current pitch shift in semitones.
func (d *Deck) Pitch() float64 { return d.pitch.Load() }

// SetVolume sets the deck's output volume, clamped to [0, 1].
func (d *Deck) SetVolume(v float64) { d.volume.Store(clampFloat(v, 0, 1)) }

// Volume returns the current volume.
func (d *Deck) Volume() float64 { return d.volume.Load() }

// SetBPM records the track's nominal BPM, must be positive.
func (d *Deck) SetBPM(bpm float64) error {
	if bpm <= 0 {
		return status.New(status.InvalidArgument, "bpm must be positive")
	}
	d.bpm.Store(bpm)
	return nil
}

// BPM returns the deck's recorded BPM, or 0 if not yet analyzed.
func (d *Deck) BPM() float64 { return d.bpm.Load() }

// SetBeatOffset records the position in seconds of the track's first downbeat.
func (d *Deck) SetBeatOffset(seconds float64) { d.beatOffset.Store(seconds) }

// BeatOffset returns the recorded beat offset in seconds.
func (d *Deck) BeatOffset() float64 { return d.beatOffset.Load() }

// SetEQLow/Mid/High set the three band gains, clamped to [0, 2].
func (d *Deck) SetEQLow(gain float64) {
	d.mu.Lock()
	d.eq.Low = clampFloat(gain, MinGain, MaxGain)
	d.mu.Unlock()
}
func (d *Deck) SetEQMid(gain float64) {
	d.mu.Lock()
	d.eq.Mid = clampFloat(gain, MinGain, MaxGain)
	d.mu.Unlock()
}
func (d *Deck) SetEQHigh(gain float64) {
	d.mu.Lock()
	d.eq.High = clampFloat(gain, MinGain, MaxGain)
	d.mu.Unlock()
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Read writes frames interleaved stereo frames into dest and always returns
// len(dest)/2, silencing any tail the source or filter could not supply
// (spec.md §4.1).
func (d *Deck) Read(dest []float32) int {
	for i := range dest {
		dest[i] = 0
	}
	framesWanted := len(dest) / 2

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.playing || d.buffer == nil {
		return framesWanted
	}

	tempo := d.tempoRatio.Load()
	pitch := d.pitch.Load()
	fastPath := absf(tempo-1.0) < fastPathTempoTolerance && absf(pitch) < fastPathPitchTolerance

	exhausted := false
	if fastPath {
		copied := d.buffer.CopyFrames(dest, d.cursor)
		d.cursor += copied
		if copied < int64(framesWanted) {
			exhausted = true
		}
	} else {
		for d.filter.Available() < framesWanted && d.cursor < d.buffer.Frames() {
			chunkFrames := int64(pullChunkFrames)
			if remaining := d.buffer.Frames() - d.cursor; remaining < chunkFrames {
				chunkFrames = remaining
			}
			if chunkFrames <= 0 {
				break
			}
			copied := d.buffer.CopyFrames(d.chunkBuf[:chunkFrames*2], d.cursor)
			d.cursor += copied
			if copied <= 0 {
				break
			}
			d.filter.Push(d.chunkBuf[:copied*2])
		}
		_, ok := d.filter.Read(dest)
		if !ok {
			exhausted = true
		}
	}

	d.eq.ProcessStereo(dest)
	vol := float32(d.volume.Load())
	for i := range dest {
		dest[i] *= vol
	}

	if exhausted {
		d.playing = false
		d.notifyEndOfTrack()
	}

	return framesWanted
}

func (d *Deck) notifyEndOfTrack() {
	if d.bus == nil {
		return
	}
	d.bus.Publish(events.EventEndOfTrack, events.Payload{"deck_id": d.id})
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
