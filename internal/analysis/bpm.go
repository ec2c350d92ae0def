/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package analysis estimates a track's BPM and first-downbeat offset from
// decoded PCM, and caches the result so repeat loads of the same file skip
// re-analysis. Decoding audio into PCM is out of scope (spec.md §1); this
// package only ever sees audiobuffer.Buffer output.
package analysis

import "math"

// windowSize is the energy-window size in samples: ~23ms at 44100Hz.
const windowSize = 1024

// maxAnalysisSeconds bounds how much of a track is scanned, keeping
// analysis fast even for long tracks.
const maxAnalysisSeconds = 30

// minBPM and maxBPM bound the octave-normalized result to the range
// typical of DJ music.
const (
	minBPM = 60.0
	maxBPM = 200.0
)

// DetectBPM analyzes interleaved stereo float32 PCM and returns the
// dominant BPM, or 0 if the signal is too short to analyze.
//
// Algorithm: downmix to mono, split into energy windows, take the
// half-wave-rectified spectral flux between windows as an onset signal,
// autocorrelate it over the lag range corresponding to [minBPM, maxBPM],
// and report the BPM of the strongest-correlating lag, octave-normalized
// into range.
func DetectBPM(stereo []float32, sampleRate int) float64 {
	mono := downmix(stereo, sampleRate)
	if len(mono) == 0 {
		return 0
	}

	numWindows := len(mono) / windowSize
	if numWindows < 4 {
		return 0
	}

	energy := make([]float64, numWindows)
	for i := 0; i < numWindows; i++ {
		start := i * windowSize
		var sum float64
		for j := 0; j < windowSize; j++ {
			s := float64(mono[start+j])
			sum += s * s
		}
		energy[i] = math.Sqrt(sum / float64(windowSize))
	}

	flux := make([]float64, numWindows)
	for i := 1; i < numWindows; i++ {
		if diff := energy[i] - energy[i-1]; diff > 0 {
			flux[i] = diff
		}
	}

	wps := float64(sampleRate) / float64(windowSize)
	minLag := int(wps * 60.0 / maxBPM)
	maxLag := int(wps * 60.0 / minBPM)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= numWindows/2 {
		maxLag = numWindows/2 - 1
	}
	if minLag >= maxLag {
		return 0
	}

	bestLag, bestCorr := minLag, -1.0
	for lag := minLag; lag <= maxLag; lag++ {
		var corr float64
		var count int
		for i := 0; i+lag < numWindows; i++ {
			corr += flux[i] * flux[i+lag]
			count++
		}
		if count > 0 {
			corr /= float64(count)
		}
		if corr > bestCorr {
			bestCorr, bestLag = corr, lag
		}
	}

	bpm := (wps * 60.0) / float64(bestLag)
	for bpm < minBPM {
		bpm *= 2
	}
	for bpm > maxBPM {
		bpm /= 2
	}
	return math.Round(bpm*10) / 10
}

// DetectBeatOffset estimates the position, in seconds, of the first strong
// onset in the track — a reasonable proxy for the first downbeat. It scans
// the same energy-window flux signal DetectBPM computes and returns the
// time of the first window whose flux exceeds a multiple of the mean flux.
func DetectBeatOffset(stereo []float32, sampleRate int) float64 {
	mono := downmix(stereo, sampleRate)
	numWindows := len(mono) / windowSize
	if numWindows < 2 {
		return 0
	}

	energy := make([]float64, numWindows)
	for i := 0; i < numWindows; i++ {
		start := i * windowSize
		var sum float64
		for j := 0; j < windowSize; j++ {
			s := float64(mono[start+j])
			sum += s * s
		}
		energy[i] = math.Sqrt(sum / float64(windowSize))
	}

	flux := make([]float64, numWindows)
	var total float64
	for i := 1; i < numWindows; i++ {
		if diff := energy[i] - energy[i-1]; diff > 0 {
			flux[i] = diff
			total += diff
		}
	}
	mean := total / float64(numWindows)
	const onsetThresholdMultiple = 2.0

	for i, v := range flux {
		if v > mean*onsetThresholdMultiple {
			return float64(i*windowSize) / float64(sampleRate)
		}
	}
	return 0
}

// downmix converts interleaved stereo to mono, truncated to
// maxAnalysisSeconds of audio.
func downmix(stereo []float32, sampleRate int) []float32 {
	frames := len(stereo) / 2
	maxFrames := sampleRate * maxAnalysisSeconds
	if maxFrames > 0 && frames > maxFrames {
		frames = maxFrames
	}
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		mono[i] = (stereo[i*2] + stereo[i*2+1]) / 2
	}
	return mono
}
