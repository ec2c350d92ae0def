/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package analysis

import (
	"math"
	"testing"
)

// pulseTrain synthesizes a stereo click track at bpm, sampleRate, for
// seconds duration: a short burst of energy at each beat, silence between.
func pulseTrain(bpm float64, sampleRate, seconds int) []float32 {
	framesPerBeat := int(60.0 * float64(sampleRate) / bpm)
	totalFrames := sampleRate * seconds
	stereo := make([]float32, totalFrames*2)
	const burstFrames = 200
	for f := 0; f < totalFrames; f++ {
		if f%framesPerBeat < burstFrames {
			v := float32(math.Sin(float64(f%framesPerBeat) * 0.3))
			stereo[f*2] = v
			stereo[f*2+1] = v
		}
	}
	return stereo
}

func TestDetectBPM_RecoversKnownTempoWithinTolerance(t *testing.T) {
	const sampleRate = 44100
	const bpm = 128.0
	stereo := pulseTrain(bpm, sampleRate, 10)

	got := DetectBPM(stereo, sampleRate)
	if got == 0 {
		t.Fatal("expected a non-zero BPM detection")
	}
	// Allow octave ambiguity (half/double tempo is a common, acceptable miss).
	ratio := got / bpm
	if math.Abs(ratio-1) > 0.05 && math.Abs(ratio-2) > 0.05 && math.Abs(ratio-0.5) > 0.05 {
		t.Fatalf("DetectBPM() = %v, want near %v (or an octave of it)", got, bpm)
	}
}

func TestDetectBPM_TooShortReturnsZero(t *testing.T) {
	stereo := make([]float32, 100) // far fewer than one analysis window
	if got := DetectBPM(stereo, 44100); got != 0 {
		t.Fatalf("DetectBPM() = %v, want 0 for too-short input", got)
	}
}

func TestDetectBeatOffset_FindsFirstOnset(t *testing.T) {
	const sampleRate = 44100
	stereo := pulseTrain(120, sampleRate, 5)
	offset := DetectBeatOffset(stereo, sampleRate)
	if offset < 0 || offset > 1.0 {
		t.Fatalf("DetectBeatOffset() = %v, want an early onset within the first second", offset)
	}
}

func TestDetectBeatOffset_SilenceReturnsZero(t *testing.T) {
	stereo := make([]float32, 44100*2)
	if got := DetectBeatOffset(stereo, 44100); got != 0 {
		t.Fatalf("DetectBeatOffset() = %v, want 0 for silence", got)
	}
}
