/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the mixing core's command surface over HTTP, plus a
// websocket feed of its notification stream (spec.md §6).
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/friendsincode/deckmix/internal/analysis"
	"github.com/friendsincode/deckmix/internal/auth"
	"github.com/friendsincode/deckmix/internal/engine"
	"github.com/friendsincode/deckmix/internal/events"
	"github.com/friendsincode/deckmix/internal/metrics"
	"github.com/friendsincode/deckmix/internal/status"
)

// API wires the mixing core's engine into an HTTP router.
type API struct {
	engine    *engine.Engine
	bus       *events.Bus
	cache     *analysis.Cache
	jwtSecret []byte
	logger    zerolog.Logger
}

// New constructs the API. cache may be nil, in which case analyze requests
// always miss and recompute.
func New(eng *engine.Engine, bus *events.Bus, cache *analysis.Cache, jwtSecret []byte, logger zerolog.Logger) *API {
	return &API{
		engine:    eng,
		bus:       bus,
		cache:     cache,
		jwtSecret: jwtSecret,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Router builds the chi router for the control surface, metrics, and
// websocket event feed.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(30 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	r.Get("/metrics", metrics.Handler().ServeHTTP)
	r.Get("/v1/health", a.handleHealth)

	r.Group(func(pr chi.Router) {
		pr.Use(auth.MiddlewareWithJWT(a.jwtSecret))

		pr.Route("/v1/decks/{deckID}", func(dr chi.Router) {
			dr.Post("/load", a.handleDeckLoad)
			dr.Post("/unload", a.handleDeckUnload)
			dr.Post("/play", a.handleDeckPlay)
			dr.Post("/pause", a.handleDeckPause)
			dr.Post("/stop", a.handleDeckStop)
			dr.Post("/seek", a.handleDeckSeek)
			dr.Post("/tempo", a.handleDeckSetTempo)
			dr.Post("/pitch", a.handleDeckSetPitch)
			dr.Post("/volume", a.handleDeckSetVolume)
			dr.Post("/eq", a.handleDeckSetEQ)
			dr.Post("/analyze", a.handleDeckAnalyze)
			dr.Get("/status", a.handleDeckStatus)
		})

		pr.Post("/v1/mixer/crossfader", a.handleMixerCrossfader)

		pr.Route("/v1/sync", func(sr chi.Router) {
			sr.Post("/enable", a.handleSyncEnable)
			sr.Post("/disable", a.handleSyncDisable)
			sr.Post("/align-now", a.handleSyncAlignNow)
			sr.Post("/play-synced", a.handleSyncPlaySynced)
			sr.Get("/status", a.handleSyncStatus)
		})

		pr.Get("/v1/events", a.handleEventsWebSocket)
	})

	return r
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, httpStatus int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(data)
}

// writeStatusErr renders a status.Err (or a plain error, treated as
// InternalError) as the control surface's JSON error envelope.
func writeStatusErr(w http.ResponseWriter, err error) {
	code := status.CodeOf(err)
	writeJSON(w, code.HTTPStatus(), map[string]string{
		"status":  string(code),
		"message": err.Error(),
	})
}
