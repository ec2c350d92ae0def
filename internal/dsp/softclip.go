/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package dsp

import "math"

// softClipKnee is where SoftClip stops passing samples through unchanged and
// starts folding them toward +-1. Keeping it below 1 (rather than at 1)
// leaves room for a fold that is continuous and monotonic all the way
// through the knee instead of jumping from the identity branch's output
// straight to the fold's.
const softClipKnee = 0.7

// SoftClip passes magnitudes at or below softClipKnee through unchanged and
// folds anything above it toward +-1 along a tanh curve, continuous and
// monotonic everywhere (including at the knee, where both branches agree on
// both value and slope) and never exceeding unit magnitude.
func SoftClip(x float32) float32 {
	abs := math.Abs(float64(x))
	if abs <= softClipKnee {
		return x
	}
	sign := float32(1)
	if x < 0 {
		sign = -1
	}
	span := 1 - softClipKnee
	folded := softClipKnee + span*math.Tanh((abs-softClipKnee)/span)
	return sign * float32(folded)
}

// SoftClipStereo applies SoftClip to every sample of an interleaved buffer
// in place.
func SoftClipStereo(frames []float32) {
	for i, s := range frames {
		frames[i] = SoftClip(s)
	}
}
