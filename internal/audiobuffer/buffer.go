/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package audiobuffer holds decoded audio in memory the way the mixing core
// consumes it: interleaved stereo float32 PCM plus its source sample rate.
package audiobuffer

import "fmt"

// Buffer is an immutable, fully-decoded stereo track. Decoding itself is an
// external collaborator's job (spec.md §1) — this type only owns the result.
type Buffer struct {
	samples    []float32 // interleaved L/R, len == Frames()*2
	sampleRate int
}

// New validates and wraps interleaved stereo float32 PCM. samples must have
// an even length (a whole number of L/R frames).
func New(samples []float32, sampleRate int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("audiobuffer: sample rate must be positive, got %d", sampleRate)
	}
	if len(samples)%2 != 0 {
		return nil, fmt.Errorf("audiobuffer: samples length %d is not a whole number of stereo frames", len(samples))
	}
	return &Buffer{samples: samples, sampleRate: sampleRate}, nil
}

// SampleRate returns the buffer's source sample rate.
func (b *Buffer) SampleRate() int {
	return b.sampleRate
}

// Samples returns the buffer's raw interleaved stereo PCM. Read-only: the
// mixing core's read path never exposes this outside of analysis/export
// use, since the audio thread must never share the slice with a goroutine
// that could mutate it concurrently.
func (b *Buffer) Samples() []float32 {
	return b.samples
}

// Frames returns the total number of L/R frames in the buffer.
func (b *Buffer) Frames() int64 {
	return int64(len(b.samples) / 2)
}

// Duration returns the buffer's length in seconds.
func (b *Buffer) Duration() float64 {
	if b.sampleRate == 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.sampleRate)
}

// CopyFrames copies up to len(dest)/2 frames starting at source frame
// cursor into dest (interleaved L/R), zero-filling any tail past the end of
// the buffer. It returns the number of frames actually copied from the
// source (before zero-fill).
func (b *Buffer) CopyFrames(dest []float32, cursor int64) int64 {
	frames := int64(len(dest) / 2)
	if cursor < 0 || cursor >= b.Frames() {
		for i := range dest {
			dest[i] = 0
		}
		return 0
	}
	available := b.Frames() - cursor
	toCopy := frames
	if toCopy > available {
		toCopy = available
	}
	copy(dest[:toCopy*2], b.samples[cursor*2:cursor*2+toCopy*2])
	for i := toCopy * 2; i < int64(len(dest)); i++ {
		dest[i] = 0
	}
	return toCopy
}
