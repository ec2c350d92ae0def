/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"net/http"
	"time"

	ws "nhooyr.io/websocket"

	"github.com/friendsincode/deckmix/internal/events"
)

// wsEvent is the envelope sent to each connected observer.
type wsEvent struct {
	Type      events.EventType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Data      events.Payload   `json:"data"`
}

// eventTypesStreamed are the notification categories pushed to websocket
// clients; position and end_of_track are the audio thread's own output.
// health, sync_state and crossfade are subscribed to as well, but nothing in
// this repository publishes them, so no frames of those types are sent.
var eventTypesStreamed = []events.EventType{
	events.EventPosition,
	events.EventEndOfTrack,
	events.EventHealth,
	events.EventSyncState,
	events.EventCrossfade,
}

// handleEventsWebSocket streams the notification bus to a connected client.
// UI notifications must never block the audio thread (spec.md §4.4); this
// handler only ever drains a buffered per-connection subscriber channel, it
// never runs on the callback's own goroutine.
func (a *API) handleEventsWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	ctx := r.Context()
	subs := make([]events.Subscriber, len(eventTypesStreamed))
	for i, t := range eventTypesStreamed {
		subs[i] = a.bus.Subscribe(t)
	}
	defer func() {
		for i, t := range eventTypesStreamed {
			a.bus.Unsubscribe(t, subs[i])
		}
	}()

	merged := make(chan wsEvent, 128)
	done := make(chan struct{})
	for i, t := range eventTypesStreamed {
		go func(eventType events.EventType, sub events.Subscriber) {
			for {
				select {
				case payload, ok := <-sub:
					if !ok {
						return
					}
					select {
					case merged <- wsEvent{Type: eventType, Timestamp: time.Now(), Data: payload}:
					case <-done:
						return
					}
				case <-done:
					return
				}
			}
		}(t, subs[i])
	}
	defer close(done)

	pingTicker := time.NewTicker(15 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "context cancelled")
			return
		case <-pingTicker.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		case evt := <-merged:
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			if err := conn.Write(ctx, ws.MessageText, data); err != nil {
				return
			}
		}
	}
}
