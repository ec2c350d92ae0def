/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package engine owns the single output stream, the audio callback, and the
// command surface the control plane drives (spec.md §4.4).
package engine

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"github.com/friendsincode/deckmix/internal/audiobuffer"
	"github.com/friendsincode/deckmix/internal/deck"
	"github.com/friendsincode/deckmix/internal/dsp"
	"github.com/friendsincode/deckmix/internal/events"
	"github.com/friendsincode/deckmix/internal/metrics"
	"github.com/friendsincode/deckmix/internal/mixer"
	"github.com/friendsincode/deckmix/internal/status"
	"github.com/friendsincode/deckmix/internal/syncmanager"
)

// positionNotifyEveryCallbacks is "every N callbacks (≈100ms)" from spec.md §4.4.
const positionNotifyEveryCallbacks = 10

// Config carries the engine's device parameters.
type Config struct {
	SampleRate            int
	BufferSize            int
	PreferredDeviceName   string // substring match, e.g. "ASIO"; empty picks the default
	EnableDriftCorrection bool
}

// Engine owns exactly one output stream and the two decks, mixer, and sync
// manager that feed it.
type Engine struct {
	cfg    Config
	bus    *events.Bus
	logger zerolog.Logger

	Decks [2]*deck.Deck
	Mixer *mixer.Mixer
	Sync  *syncmanager.Manager

	metrics *metrics.Metrics

	mu            sync.Mutex
	stream        *portaudio.Stream
	initialized   bool
	callbackCount uint64
}

// SetMetrics attaches a collector set the callback and transport state
// report into. Optional — a nil Metrics (the default) disables reporting.
func (e *Engine) SetMetrics(m *metrics.Metrics) {
	e.metrics = m
}

// New constructs an engine. It does not touch the audio host; call Init to
// open the device.
func New(cfg Config, bus *events.Bus, logger zerolog.Logger) *Engine {
	e := &Engine{cfg: cfg, bus: bus, logger: logger.With().Str("component", "engine").Logger()}
	e.Decks[0] = deck.New(0, cfg.SampleRate, dsp.NewStreamShifter(), bus, logger)
	e.Decks[1] = deck.New(1, cfg.SampleRate, dsp.NewStreamShifter(), bus, logger)
	e.Mixer = mixer.New()
	e.Sync = syncmanager.New(cfg.EnableDriftCorrection)
	return e
}

// Init initializes the audio host, selects an output device (preferring a
// low-latency driver where one is named in Config.PreferredDeviceName, else
// the default), and opens a stereo float32 output stream at the configured
// sample rate and buffer size. Fails with status.NoDevice if no suitable
// output device exists.
func (e *Engine) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialized {
		return status.New(status.AlreadyInitialized, "engine already initialized")
	}

	if err := portaudio.Initialize(); err != nil {
		return status.New(status.NoDevice, "failed to initialize audio host: "+err.Error())
	}

	outDevice, err := e.selectOutputDevice()
	if err != nil {
		portaudio.Terminate()
		return err
	}

	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   outDevice,
			Channels: 2,
			Latency:  outDevice.DefaultLowOutputLatency,
		},
		SampleRate:      float64(e.cfg.SampleRate),
		FramesPerBuffer: e.cfg.BufferSize,
	}

	stream, err := portaudio.OpenStream(params, e.callback)
	if err != nil {
		portaudio.Terminate()
		return status.New(status.InternalError, "failed to open audio stream: "+err.Error())
	}
	if err := stream.Start(); err != nil {
		portaudio.Terminate()
		return status.New(status.InternalError, "failed to start audio stream: "+err.Error())
	}

	e.stream = stream
	e.initialized = true
	e.logger.Info().Str("device", outDevice.Name).Int("sample_rate", e.cfg.SampleRate).
		Int("buffer_size", e.cfg.BufferSize).Msg("audio stream started")
	return nil
}

func (e *Engine) selectOutputDevice() (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil || len(devices) == 0 {
		return nil, status.New(status.NoDevice, "no audio devices available")
	}

	if e.cfg.PreferredDeviceName != "" {
		for _, d := range devices {
			if d.MaxOutputChannels >= 2 && strings.Contains(strings.ToLower(d.Name), strings.ToLower(e.cfg.PreferredDeviceName)) {
				return d, nil
			}
		}
	}

	def, err := portaudio.DefaultHostApi()
	if err != nil || def.DefaultOutputDevice == nil {
		return nil, status.New(status.NoDevice, "no default output device available")
	}
	return def.DefaultOutputDevice, nil
}

// Stop blocks until the stream has drained and closed.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return status.New(status.NotInitialized, "engine not initialized")
	}
	if err := e.stream.Stop(); err != nil {
		return status.New(status.InternalError, err.Error())
	}
	if err := e.stream.Close(); err != nil {
		return status.New(status.InternalError, err.Error())
	}
	portaudio.Terminate()
	e.initialized = false
	e.stream = nil
	e.logger.Info().Msg("audio stream stopped")
	return nil
}

// callback is invoked by the driver on the audio thread. It must never
// allocate, take a long-held lock, perform I/O, or log (spec.md §5). Timing
// it with time.Now/time.Since is the one exception: it is cheap, allocation
// free, and is how the host's own scheduler reports its own deadline misses.
func (e *Engine) callback(out []float32) {
	start := time.Now()

	decks := []syncmanager.Deck{e.Decks[0], e.Decks[1]}
	e.Sync.Update(decks)

	frames := len(out) / 2
	e.Mixer.Mix(e.Decks[0], e.Decks[1], out, frames)

	e.callbackCount++
	if e.callbackCount%positionNotifyEveryCallbacks == 0 {
		e.notifyPositions()
	}

	if e.metrics != nil {
		duration := time.Since(start)
		e.metrics.CallbackDuration.Observe(duration.Seconds())
		if duration > e.CallbackPeriod() {
			e.metrics.CallbackUnderruns.Inc()
		}
		for _, d := range e.Decks {
			playing := 0.0
			if d.IsPlaying() {
				playing = 1.0
			}
			e.metrics.DeckPlaying.WithLabelValues(strconv.Itoa(d.ID())).Set(playing)
		}
		e.metrics.SyncState.Set(syncStateValue(e.Sync.State()))
	}
}

func syncStateValue(s syncmanager.State) float64 {
	switch s {
	case syncmanager.Armed:
		return 1
	case syncmanager.Aligned:
		return 2
	default:
		return 0
	}
}

func (e *Engine) notifyPositions() {
	for _, d := range e.Decks {
		e.bus.Publish(events.EventPosition, events.Payload{
			"deck_id": d.ID(),
			"seconds": d.PositionSeconds(),
		})
	}
}

// LoadDeck loads a decoded buffer into deck id (0 or 1).
func (e *Engine) LoadDeck(id int, buf *audiobuffer.Buffer) error {
	d, err := e.deckByID(id)
	if err != nil {
		return err
	}
	return d.Load(buf)
}

func (e *Engine) deckByID(id int) (*deck.Deck, error) {
	if id != 0 && id != 1 {
		return nil, status.New(status.InvalidArgument, "deck id must be 0 or 1")
	}
	return e.Decks[id], nil
}

// CallbackPeriod returns the fixed audio callback period.
func (e *Engine) CallbackPeriod() time.Duration {
	return time.Duration(float64(e.cfg.BufferSize) / float64(e.cfg.SampleRate) * float64(time.Second))
}
