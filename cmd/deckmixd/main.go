/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/friendsincode/deckmix/internal/analysis"
	"github.com/friendsincode/deckmix/internal/api"
	"github.com/friendsincode/deckmix/internal/config"
	"github.com/friendsincode/deckmix/internal/engine"
	"github.com/friendsincode/deckmix/internal/events"
	"github.com/friendsincode/deckmix/internal/eventbus"
	"github.com/friendsincode/deckmix/internal/logging"
	"github.com/friendsincode/deckmix/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Environment)
	logger.Info().Msg("deckmix engine starting")
	for _, warning := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warning)
	}

	bus := events.NewBus()
	met := metrics.New(prometheus.DefaultRegisterer)
	bus.OnDropped = func(eventType events.EventType) {
		met.EventsDropped.WithLabelValues(string(eventType)).Inc()
	}

	if cfg.NATSEnabled {
		nb, err := eventbus.NewNATSBus(eventbus.NATSConfig{
			URL:           cfg.NATSURL,
			Token:         cfg.NATSToken,
			StreamName:    eventbus.DefaultNATSConfig().StreamName,
			MaxReconnects: eventbus.DefaultNATSConfig().MaxReconnects,
			ReconnectWait: eventbus.DefaultNATSConfig().ReconnectWait,
			Timeout:       eventbus.DefaultNATSConfig().Timeout,
			MaxFailures:   eventbus.DefaultNATSConfig().MaxFailures,
		}, "", logger)
		if err != nil {
			logger.Error().Err(err).Msg("failed to start NATS event bridge, continuing with in-memory bus only")
		} else {
			bridgeBusToNATS(bus, nb)
			defer nb.Close()
		}
	}

	cache, err := analysis.OpenCache(cfg.AnalysisCacheDSN, cfg.AnalysisCacheDebug)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open analysis cache")
	}
	defer cache.Close()

	eng := engine.New(engine.Config{
		SampleRate:            cfg.SampleRate,
		BufferSize:            cfg.BufferSize,
		PreferredDeviceName:   cfg.AudioDevice,
		EnableDriftCorrection: cfg.DriftCorrectionEnabled,
	}, bus, logger)
	eng.SetMetrics(met)

	if err := eng.Init(); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize audio engine")
	}

	a := api.New(eng, bus, cache, []byte(cfg.JWTSigningKey), logger)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort),
		Handler: a.Router(),
	}

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP control API listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful http shutdown failed")
	}
	if err := eng.Stop(); err != nil {
		logger.Error().Err(err).Msg("engine shutdown failed")
	}

	logger.Info().Msg("deckmix engine stopped")
}

// bridgeBusToNATS republishes every in-memory event onto the NATS bus, so
// an out-of-process auto-mix orchestrator (spec.md §1) can watch the engine's
// notification stream without the engine's own code depending on NATS being
// reachable — the audio callback only ever touches the in-memory bus.
func bridgeBusToNATS(bus *events.Bus, nb *eventbus.NATSBus) {
	types := []events.EventType{
		events.EventPosition,
		events.EventEndOfTrack,
		events.EventHealth,
		events.EventSyncState,
		events.EventCrossfade,
	}
	for _, t := range types {
		sub := bus.Subscribe(t)
		go func(eventType events.EventType, sub events.Subscriber) {
			for payload := range sub {
				nb.Publish(eventType, payload)
			}
		}(t, sub)
	}
}
