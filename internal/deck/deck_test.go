/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package deck

import (
	"testing"

	"github.com/friendsincode/deckmix/internal/audiobuffer"
	"github.com/friendsincode/deckmix/internal/dsp"
	"github.com/friendsincode/deckmix/internal/events"
	"github.com/rs/zerolog"
)

const testSampleRate = 48000

func rampBuffer(t *testing.T, frames int) *audiobuffer.Buffer {
	t.Helper()
	samples := make([]float32, frames*2)
	for i := 0; i < frames; i++ {
		samples[i*2] = float32(i + 1)
		samples[i*2+1] = float32(-(i + 1))
	}
	buf, err := audiobuffer.New(samples, testSampleRate)
	if err != nil {
		t.Fatalf("audiobuffer.New: %v", err)
	}
	return buf
}

func newTestDeck() *Deck {
	return New(0, testSampleRate, dsp.NewStreamShifter(), events.NewBus(), zerolog.Nop())
}

func TestDeck_ReadBeforePlaySupplesSilence(t *testing.T) {
	d := newTestDeck()
	if err := d.Load(rampBuffer(t, 100)); err != nil {
		t.Fatalf("Load: %v", err)
	}

	dest := make([]float32, 10*2)
	n := d.Read(dest)
	if n != 10 {
		t.Fatalf("Read() = %d, want 10", n)
	}
	for i, v := range dest {
		if v != 0 {
			t.Fatalf("dest[%d] = %v, want silence before play", i, v)
		}
	}
}

func TestDeck_FastPathCopiesSourceBitIdentical(t *testing.T) {
	d := newTestDeck()
	d.Load(rampBuffer(t, 100))
	d.Play(nil)

	dest := make([]float32, 10*2)
	d.Read(dest)
	for i := 0; i < 10; i++ {
		if got, want := dest[i*2], float32(i+1); got != want {
			t.Fatalf("frame %d left channel = %v, want %v", i, got, want)
		}
	}
	if d.Cursor() != 10 {
		t.Fatalf("Cursor() = %d, want 10", d.Cursor())
	}
}

func TestDeck_PlayWithStartFrameSetsCursorAtomicallyWithNextRead(t *testing.T) {
	d := newTestDeck()
	d.Load(rampBuffer(t, 100))

	start := int64(50)
	if err := d.Play(&start); err != nil {
		t.Fatalf("Play: %v", err)
	}

	dest := make([]float32, 5*2)
	d.Read(dest)
	if got, want := dest[0], float32(51); got != want {
		t.Fatalf("first sample after play(start_frame=50) = %v, want %v", got, want)
	}
}

func TestDeck_EndOfTrackStopsPlaybackAndFiresOnce(t *testing.T) {
	d := newTestDeck()
	bus := events.NewBus()
	d.bus = bus
	sub := bus.Subscribe(events.EventEndOfTrack)

	d.Load(rampBuffer(t, 5))
	d.Play(nil)

	dest := make([]float32, 10*2)
	d.Read(dest)

	if d.IsPlaying() {
		t.Fatal("expected deck to pause at end of track")
	}
	select {
	case <-sub:
	default:
		t.Fatal("expected end-of-track notification to be published")
	}

	// A subsequent read while paused must not fire a second notification.
	d.Read(dest)
	select {
	case <-sub:
		t.Fatal("expected exactly one end-of-track notification per play-through")
	default:
	}
}

func TestDeck_SeekClampsToTrackBounds(t *testing.T) {
	d := newTestDeck()
	d.Load(rampBuffer(t, 100))

	if err := d.Seek(1000); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if d.Cursor() != 100 {
		t.Fatalf("Cursor() = %d, want clamped to 100", d.Cursor())
	}
}

func TestDeck_SetTempoClampsToValidRange(t *testing.T) {
	d := newTestDeck()
	d.SetTempo(5.0)
	if got := d.TempoRatio(); got != MaxTempoRatio {
		t.Fatalf("TempoRatio() = %v, want clamped to %v", got, MaxTempoRatio)
	}
	d.SetTempo(0.01)
	if got := d.TempoRatio(); got != MinTempoRatio {
		t.Fatalf("TempoRatio() = %v, want clamped to %v", got, MinTempoRatio)
	}
}

func TestDeck_FilteredPathUsedWhenTempoOffUnity(t *testing.T) {
	d := newTestDeck()
	d.Load(rampBuffer(t, 1000))
	d.SetTempo(1.5)
	d.Play(nil)

	dest := make([]float32, 100*2)
	n := d.Read(dest)
	if n != 100 {
		t.Fatalf("Read() = %d, want 100", n)
	}
	// The filtered path pulls source in chunks of up to pullChunkFrames, so
	// the cursor runs past the output frame count (here to the 1000-frame end
	// of the track); the fast path would leave it at exactly 100.
	if d.Cursor() <= 100 {
		t.Fatalf("expected filtered path to pull ahead of output count, cursor=%d", d.Cursor())
	}
}

func TestDeck_StopResetsCursorToZero(t *testing.T) {
	d := newTestDeck()
	d.Load(rampBuffer(t, 100))
	d.Play(nil)
	d.Read(make([]float32, 10*2))
	d.Stop()

	if d.Cursor() != 0 {
		t.Fatalf("Cursor() = %d, want 0 after Stop", d.Cursor())
	}
	if d.IsPlaying() {
		t.Fatal("expected IsPlaying() == false after Stop")
	}
}

func TestDeck_LoadRejectsMismatchedSampleRate(t *testing.T) {
	d := newTestDeck()
	buf, _ := audiobuffer.New(make([]float32, 20), 44100)
	if err := d.Load(buf); err == nil {
		t.Fatal("expected Load to reject a buffer at the wrong sample rate")
	}
}

func TestDeck_SetBPMRejectsNonPositive(t *testing.T) {
	d := newTestDeck()
	if err := d.SetBPM(0); err == nil {
		t.Fatal("expected SetBPM(0) to error")
	}
	if err := d.SetBPM(128); err != nil {
		t.Fatalf("SetBPM(128): %v", err)
	}
	if got := d.BPM(); got != 128 {
		t.Fatalf("BPM() = %v, want 128", got)
	}
}
