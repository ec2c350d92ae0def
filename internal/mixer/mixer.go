/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package mixer combines the two decks' output into a single stereo stream:
// equal-power crossfade followed by soft-clip (spec.md §4.2).
package mixer

import (
	"math"

	"github.com/friendsincode/deckmix/internal/atomicx"
	"github.com/friendsincode/deckmix/internal/dsp"
)

// reader is the subset of *deck.Deck the mixer pulls samples from. Kept as
// an interface so the mixer can be exercised with scratch decks in tests
// without importing the deck package.
type reader interface {
	Read(dest []float32) int
}

// Mixer blends two deck readers under a scalar crossfader position.
type Mixer struct {
	crossfader *atomicx.Float64

	scratchA []float32
	scratchB []float32
}

// New constructs a mixer centered at x=0.5 (equal blend).
func New() *Mixer {
	return &Mixer{crossfader: atomicx.NewFloat64(0.5)}
}

// SetCrossfader sets the crossfader position, clamped to [0, 1]. Writable
// from any goroutine; the callback reads it without locking (spec.md §4.2).
func (m *Mixer) SetCrossfader(x float64) {
	if x < 0 {
		x = 0
	}
	if x > 1 {
		x = 1
	}
	m.crossfader.Store(x)
}

// Crossfader returns the current crossfader position.
func (m *Mixer) Crossfader() float64 { return m.crossfader.Load() }

// Mix pulls frames from deckA and deckB, blends them under the current
// crossfader position with equal-power gains, soft-clips the result, and
// writes it to output (interleaved stereo, len(output) == frames*2).
func (m *Mixer) Mix(deckA, deckB reader, output []float32, frames int) {
	need := frames * 2
	if cap(m.scratchA) < need {
		m.scratchA = make([]float32, need)
		m.scratchB = make([]float32, need)
	}
	a := m.scratchA[:need]
	b := m.scratchB[:need]

	deckA.Read(a)
	deckB.Read(b)

	x := m.crossfader.Load()
	gA := float32(math.Cos(x * math.Pi / 2))
	gB := float32(math.Sin(x * math.Pi / 2))

	for i := 0; i < need; i++ {
		output[i] = dsp.SoftClip(a[i]*gA + b[i]*gB)
	}
}
