/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package dsp

import (
	"math"
	"sync"
)

// historyFrames is the number of already-consumed frames StreamShifter keeps
// behind the read cursor so Catmull-Rom interpolation always has four valid
// sample points (one before, two around, one after the fractional position).
const historyFrames = 1

// lookaheadFrames is the number of not-yet-consumed frames beyond the
// fractional cursor interpolation needs to read ahead.
const lookaheadFrames = 2

// StreamShifter is a fractional-position resampling time-scaler: push
// interleaved stereo frames in, draw tempo/pitch-scaled frames out. It
// combines tempo and a pitch-derived resample factor into a single
// resampling step, the same shape as a simple speed-shifting player — true
// phase-vocoder independence of tempo and pitch is out of scope (spec
// explicitly treats the filter as a replaceable, contract-only component).
type StreamShifter struct {
	mu sync.Mutex

	tempoRatio float64
	pitchSemis float64
	step       float64 // effective resample step, recomputed on Set*

	buf     []float32 // interleaved L/R, frames not yet fully consumed
	fracPos float64   // fractional frame index into buf
}

// NewStreamShifter creates a filter at unity tempo and pitch.
func NewStreamShifter() *StreamShifter {
	s := &StreamShifter{tempoRatio: 1.0, pitchSemis: 0}
	s.recomputeStep()
	return s
}

func (s *StreamShifter) recomputeStep() {
	s.step = s.tempoRatio * math.Pow(2, s.pitchSemis/12.0)
}

// SetRatio sets the tempo ratio. Takes effect on the next Read.
func (s *StreamShifter) SetRatio(ratio float64) {
	s.mu.Lock()
	s.tempoRatio = ratio
	s.recomputeStep()
	s.mu.Unlock()
}

// SetPitch sets the pitch shift in semitones. Takes effect on the next Read.
func (s *StreamShifter) SetPitch(semitones float64) {
	s.mu.Lock()
	s.pitchSemis = semitones
	s.recomputeStep()
	s.mu.Unlock()
}

// Push appends interleaved stereo source frames to the filter's pending
// buffer. May allocate (growing buf); called from the filtered-path loop in
// Deck.Read, which runs on the audio callback, and never from Clear.
func (s *StreamShifter) Push(frames []float32) {
	s.mu.Lock()
	s.buf = append(s.buf, frames...)
	s.mu.Unlock()
}

// Available reports how many fully-interpolated output frames can currently
// be drawn without running past the pushed data.
func (s *StreamShifter) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available()
}

func (s *StreamShifter) available() int {
	total := int64(len(s.buf) / 2)
	usable := total - lookaheadFrames
	if usable <= 0 {
		return 0
	}
	remaining := float64(usable) - s.fracPos
	if remaining <= 0 {
		return 0
	}
	return int(remaining / s.step)
}

// Read draws len(dest)/2 interleaved stereo frames, Catmull-Rom
// interpolating between pushed source frames at the current fractional
// cursor. If fewer frames are available than requested, the remainder of
// dest is zero-filled and ok is false.
func (s *StreamShifter) Read(dest []float32) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := len(dest) / 2
	produced := 0
	for produced < want {
		if s.available() <= 0 {
			break
		}
		idx := int(s.fracPos)
		frac := s.fracPos - float64(idx)

		i0 := idx - historyFrames
		if i0 < 0 {
			i0 = 0
		}
		t32 := float32(frac)
		l := catmullRom(
			s.sampleAt(i0, 0), s.sampleAt(idx, 0), s.sampleAt(idx+1, 0), s.sampleAt(idx+2, 0), t32)
		r := catmullRom(
			s.sampleAt(i0, 1), s.sampleAt(idx, 1), s.sampleAt(idx+1, 1), s.sampleAt(idx+2, 1), t32)

		dest[produced*2] = l
		dest[produced*2+1] = r
		produced++
		s.fracPos += s.step
	}

	for i := produced * 2; i < len(dest); i++ {
		dest[i] = 0
	}

	s.trim()
	return produced, produced == want
}

func (s *StreamShifter) sampleAt(frame, channel int) float32 {
	idx := frame*2 + channel
	if idx < 0 || idx >= len(s.buf) {
		return 0
	}
	return s.buf[idx]
}

// trim drops fully-consumed frames from the front of buf, keeping
// historyFrames of context before the cursor for interpolation continuity.
func (s *StreamShifter) trim() {
	drop := int(s.fracPos) - historyFrames
	if drop <= 0 {
		return
	}
	if drop*2 >= len(s.buf) {
		s.buf = s.buf[:0]
		s.fracPos -= float64(drop)
		return
	}
	s.buf = append(s.buf[:0], s.buf[drop*2:]...)
	s.fracPos -= float64(drop)
}

// Clear discards all buffered state without allocating: it truncates the
// existing slice and resets scalars rather than assigning a new nil/slice
// value the next Push would have to grow from scratch anyway.
func (s *StreamShifter) Clear() {
	s.mu.Lock()
	s.buf = s.buf[:0]
	s.fracPos = 0
	s.mu.Unlock()
}

// catmullRom interpolates between p1 and p2 at fractional position t in
// [0,1), using p0 and p3 as the neighboring control points.
func catmullRom(p0, p1, p2, p3, t float32) float32 {
	tt := t
	a0 := -0.5*p0 + 1.5*p1 - 1.5*p2 + 0.5*p3
	a1 := p0 - 2.5*p1 + 2*p2 - 0.5*p3
	a2 := -0.5*p0 + 0.5*p2
	a3 := p1
	return ((a0*tt+a1)*tt+a2)*tt + a3
}
