/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/friendsincode/deckmix/internal/events"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// NATSBus republishes engine notifications outward onto a NATS JetStream
// subject so an out-of-process auto-mix orchestrator, UI, or analytics
// consumer can watch position, end-of-track, and sync-state events without
// polling the HTTP API. It is write-only from this process's point of view:
// nothing in deckmix subscribes back, so there is no consumer, ack/nak, or
// echo-suppression machinery to maintain. Publish always also delivers
// through the in-memory events.Bus fallback, so notification delivery on the
// audio path never depends on a broker being reachable.
type NATSBus struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger zerolog.Logger

	fallback *events.Bus
	nodeID   string

	mu          sync.Mutex
	useFallback bool
	failCount   int
	maxFails    int
}

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL   string
	Token string

	StreamName string

	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration

	MaxFailures int
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		StreamName:    "DECKMIX_EVENTS",
		MaxReconnects: -1, // unlimited
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
		MaxFailures:   5,
	}
}

// NewNATSBus creates a NATS-backed publisher. Falls back to the in-memory
// bus alone if NATS is unreachable at startup.
func NewNATSBus(cfg NATSConfig, nodeID string, logger zerolog.Logger) (*NATSBus, error) {
	if nodeID == "" {
		nodeID = generateNodeID()
	}

	fallbackOnly := func(err error, stage string) (*NATSBus, error) {
		logger.Warn().Err(err).Str("stage", stage).Msg("NATS unavailable, using in-memory fallback")
		return &NATSBus{
			logger:      logger,
			fallback:    events.NewBus(),
			nodeID:      nodeID,
			useFallback: true,
			maxFails:    cfg.MaxFailures,
		}, nil
	}

	opts := []nats.Option{
		nats.Name(fmt.Sprintf("deckmix-%s", nodeID)),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return fallbackOnly(err, "connect")
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return fallbackOnly(err, "jetstream")
	}

	if err := createOrUpdateStream(context.Background(), js, cfg.StreamName); err != nil {
		conn.Close()
		return fallbackOnly(err, "create_stream")
	}

	logger.Info().Str("url", cfg.URL).Str("stream", cfg.StreamName).Msg("NATS event bus initialized")

	return &NATSBus{
		conn:     conn,
		js:       js,
		logger:   logger,
		fallback: events.NewBus(),
		nodeID:   nodeID,
		maxFails: cfg.MaxFailures,
	}, nil
}

// createOrUpdateStream creates or updates the JetStream stream backing
// published events, so a reconnecting orchestrator can replay recent history
// instead of only seeing events published while it happened to be connected.
func createOrUpdateStream(ctx context.Context, js jetstream.JetStream, streamName string) error {
	streamCfg := jetstream.StreamConfig{
		Name:        streamName,
		Subjects:    []string{"deckmix.events.>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "deckmix engine notification bus",
	}

	if _, err := js.Stream(ctx, streamName); err != nil {
		if _, err := js.CreateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		return nil
	}
	if _, err := js.UpdateStream(ctx, streamCfg); err != nil {
		return fmt.Errorf("update stream: %w", err)
	}
	return nil
}

// Publish sends an event payload to the in-memory fallback and, unless the
// circuit breaker has tripped, to NATS. A failed NATS publish only trips the
// breaker — it never surfaces as an error the audio callback would have to
// handle.
func (nb *NATSBus) Publish(eventType events.EventType, payload events.Payload) {
	nb.fallback.Publish(eventType, payload)

	nb.mu.Lock()
	useFallback := nb.useFallback
	nb.mu.Unlock()
	if useFallback {
		return
	}

	data, err := marshalNATSMessage(eventType, payload, nb.nodeID)
	if err != nil {
		nb.logger.Error().Err(err).Msg("failed to marshal NATS message")
		return
	}

	subject := fmt.Sprintf("deckmix.events.%s", eventType)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := nb.js.Publish(ctx, subject, data); err != nil {
		nb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to NATS")
		nb.handleFailure()
		return
	}

	nb.mu.Lock()
	nb.failCount = 0
	nb.mu.Unlock()
}

// Close closes the NATS connection, if one is open.
func (nb *NATSBus) Close() error {
	if nb.conn != nil {
		nb.conn.Close()
		nb.logger.Info().Msg("NATS event bus closed")
	}
	return nil
}

// handleFailure implements the circuit breaker: after maxFails consecutive
// publish failures, stop trying NATS and rely on the in-memory fallback for
// the rest of this process's lifetime.
func (nb *NATSBus) handleFailure() {
	nb.mu.Lock()
	defer nb.mu.Unlock()

	nb.failCount++
	if nb.failCount >= nb.maxFails && !nb.useFallback {
		nb.logger.Warn().Int("fail_count", nb.failCount).Msg("NATS failure threshold reached, switching to in-memory fallback")
		nb.useFallback = true
		if nb.conn != nil {
			nb.conn.Close()
		}
	}
}

// natsMessage is the wire format published to NATS.
type natsMessage struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
}

func marshalNATSMessage(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	msg := natsMessage{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now(),
		NodeID:    nodeID,
	}
	return json.Marshal(msg)
}

// generateNodeID creates a unique node identifier.
func generateNodeID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8])
}
