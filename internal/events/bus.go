/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates the notification categories the engine publishes.
// The audio callback only ever produces EventPosition and EventEndOfTrack;
// the rest are raised by the control plane.
type EventType string

const (
	// EventPosition carries a deck's playhead, published roughly every
	// 100ms from the audio callback (spec.md §4.4).
	EventPosition EventType = "position"
	// EventEndOfTrack fires exactly once per load/play-through cycle when a
	// deck's source buffer is exhausted.
	EventEndOfTrack EventType = "end_of_track"
	// EventHealth is the category for non-fatal anomalies. Subscribers can
	// listen for it, but nothing in this repository publishes it.
	EventHealth EventType = "health"
	// EventSyncState is the category for sync manager state transitions.
	// Subscribers can listen for it, but nothing in this repository
	// publishes it.
	EventSyncState EventType = "sync_state"
	// EventCrossfade is the category for crossfader position changes.
	// Subscribers can listen for it, but nothing in this repository
	// publishes it.
	EventCrossfade EventType = "crossfade"
)

// Payload is a generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// Bus implements a simple in-process pubsub. Publish never blocks: a
// subscriber with a full channel silently drops the event rather than
// stalling the caller — critical since the audio callback publishes
// directly (spec.md §5: no suspension points in the callback).
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber

	// OnDropped, if set, is invoked (off the audio thread's call stack is
	// not guaranteed — keep it cheap) whenever a subscriber's channel was
	// full and an event was silently discarded.
	OnDropped func(eventType EventType)
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for an event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 32)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers of eventType. Non-blocking.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[eventType]...)
	b.mu.RUnlock()
	for _, sub := range subs {
		select {
		case sub <- payload:
		default:
			if b.OnDropped != nil {
				b.OnDropped(eventType)
			}
		}
	}
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	b.subs[eventType] = subs
	close(sub)
}
