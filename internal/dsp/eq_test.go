package dsp

import "testing"

func TestEQ_UnityGainsReconstructInput(t *testing.T) {
	eq := NewEQ(48000)
	input := make([]float32, 512*2)
	for i := range input {
		// deterministic pseudo-noise without math/rand (avoids time seeding)
		input[i] = float32(((i*2654435761)%2000)-1000) / 1000
	}
	frames := append([]float32(nil), input...)
	eq.ProcessStereo(frames)

	var maxDiff float32
	for i := range frames {
		diff := frames[i] - input[i]
		if diff < 0 {
			diff = -diff
		}
		if diff > maxDiff {
			maxDiff = diff
		}
	}
	if maxDiff > 1e-4 {
		t.Fatalf("unity-gain EQ diverged from input by %v", maxDiff)
	}
}

func TestEQ_LowGainZeroAttenuatesBass(t *testing.T) {
	eq := NewEQ(48000)
	eq.Low = 0

	// A 60 Hz square wave (period 800 frames at 48 kHz), six periods long:
	// its fundamental sits well below the 250 Hz low crossover.
	frames := make([]float32, 4800*2)
	for i := 0; i < 4800; i++ {
		v := float32(1.0)
		if i%800 >= 400 {
			v = -1.0
		}
		frames[i*2] = v
		frames[i*2+1] = v
	}
	out := append([]float32(nil), frames...)
	eq.ProcessStereo(out)

	var inEnergy, outEnergy float64
	for i := range frames {
		inEnergy += float64(frames[i]) * float64(frames[i])
		outEnergy += float64(out[i]) * float64(out[i])
	}
	if outEnergy >= inEnergy {
		t.Fatalf("expected zeroing the low band to reduce energy: in=%v out=%v", inEnergy, outEnergy)
	}
}
