/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package metrics exposes the mixing core's health as Prometheus metrics:
// callback timing, underrun/drop counts, and per-deck transport state
// (spec.md §7: driver underruns are "logged out-of-band", not inline in the
// callback).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process-wide collectors the engine and notification
// pipeline update.
type Metrics struct {
	CallbackDuration  prometheus.Histogram
	CallbackUnderruns prometheus.Counter
	EventsDropped     *prometheus.CounterVec
	DeckPlaying       *prometheus.GaugeVec
	SyncState         prometheus.Gauge
}

// New registers and returns the mixing core's collectors against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CallbackDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "deckmix",
			Subsystem: "engine",
			Name:      "callback_duration_seconds",
			Help:      "Wall-clock duration of each audio callback invocation.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 12),
		}),
		CallbackUnderruns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "deckmix",
			Subsystem: "engine",
			Name:      "callback_underruns_total",
			Help:      "Audio callbacks whose processing took longer than the callback period.",
		}),
		EventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deckmix",
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Notifications dropped because a subscriber's queue was full.",
		}, []string{"event_type"}),
		DeckPlaying: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "deckmix",
			Subsystem: "deck",
			Name:      "playing",
			Help:      "1 if the deck is currently playing, else 0.",
		}, []string{"deck_id"}),
		SyncState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "deckmix",
			Subsystem: "sync",
			Name:      "state",
			Help:      "Sync manager state: 0=idle, 1=armed, 2=aligned.",
		}),
	}
}

// Handler returns the HTTP handler the control API mounts at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
