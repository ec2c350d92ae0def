/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package dsp implements the streaming signal-processing pieces the mixing
// core applies to a deck's samples: a tempo/pitch time-scaling filter, the
// three-band EQ, and the mixer's soft-clip curve.
package dsp

// TempoFilter is the streaming time-scaling filter contract a Deck drives.
// Implementations push source frames in, draw time-scaled frames out, and
// must support a zero-allocation Clear so the audio thread can call it while
// holding a deck's mutex (spec.md §5).
type TempoFilter interface {
	// SetRatio sets the tempo ratio (0.5-2.0; 1.0 is unchanged speed).
	SetRatio(ratio float64)
	// SetPitch sets the pitch shift in semitones (-12..+12).
	SetPitch(semitones float64)
	// Push feeds interleaved stereo source frames into the filter.
	Push(frames []float32)
	// Read draws interleaved stereo frames out of the filter into dest,
	// returning the number of frames actually produced and whether the
	// filter was able to fully satisfy the request.
	Read(dest []float32) (frames int, ok bool)
	// Available reports how many fully time-scaled output frames are
	// currently buffered and ready for Read.
	Available() int
	// Clear discards all buffered state without allocating.
	Clear()
}
