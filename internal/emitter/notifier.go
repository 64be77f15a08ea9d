// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

// Package emitter fans triggered events out to their delivery channels:
// the websocket hub for live viewers, NATS for downstream consumers, and
// the per-stream push endpoint (webhook or MQTT) via the durable queue.
package emitter

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/wardsight/wardsight/internal/logging"
	"github.com/wardsight/wardsight/internal/metrics"
	"github.com/wardsight/wardsight/internal/models"
	"github.com/wardsight/wardsight/internal/stream"
	"github.com/wardsight/wardsight/internal/wal"
)

// Delivery is one event addressed to a push channel. It is the unit stored
// in the delivery queue, so the envelope must stay JSON round-trippable.
type Delivery struct {
	Event    *models.Event `json:"event"`
	Endpoint string        `json:"endpoint,omitempty"`  // per-stream override, empty uses the notifier default
	PushType string        `json:"push_type,omitempty"` // webhook or mqtt
}

// Notifier delivers events to one external channel.
type Notifier interface {
	Name() string
	Enabled() bool
	Send(ctx context.Context, d Delivery) error
}

// Broadcaster pushes live event frames to connected websocket clients.
type Broadcaster interface {
	BroadcastJSON(messageType string, data any)
}

// Options wires the emitter's delivery channels. Any of them may be nil,
// in which case that channel is skipped.
type Options struct {
	Hub       Broadcaster
	Queue     *wal.WAL
	Publisher *Publisher
	Notifiers []Notifier

	// SendTimeout bounds direct sends when no durable queue is configured.
	SendTimeout time.Duration
}

// Emitter routes triggered events to all configured channels.
type Emitter struct {
	hub         Broadcaster
	queue       *wal.WAL
	publisher   *Publisher
	notifiers   map[string]Notifier
	sendTimeout time.Duration
}

// New creates an emitter from the given options.
func New(opts Options) *Emitter {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}
	notifiers := make(map[string]Notifier, len(opts.Notifiers))
	for _, n := range opts.Notifiers {
		notifiers[n.Name()] = n
	}
	return &Emitter{
		hub:         opts.Hub,
		queue:       opts.Queue,
		publisher:   opts.Publisher,
		notifiers:   notifiers,
		sendTimeout: opts.SendTimeout,
	}
}

// Notifier returns the notifier registered under name, or nil.
func (e *Emitter) Notifier(name string) Notifier {
	return e.notifiers[name]
}

// Emit delivers a triggered event. Websocket and NATS are best effort;
// the push endpoint goes through the durable queue when one is configured
// so a crash or unreachable endpoint does not lose the event.
func (e *Emitter) Emit(ctx context.Context, ev *models.Event, cfg stream.Config) {
	if e.hub != nil {
		e.hub.BroadcastJSON("behavior_event", ev)
	}

	if e.publisher != nil {
		if err := e.publisher.PublishEvent(ctx, ev); err != nil {
			logging.Warn().Err(err).Str("event", ev.Name).Msg("nats publish failed")
		}
	}

	d := Delivery{
		Event:    ev,
		Endpoint: cfg.PushEndpoint,
		PushType: cfg.PushType,
	}
	if d.PushType == "" {
		d.PushType = "webhook"
	}

	if e.queue != nil {
		if err := e.enqueue(d); err != nil {
			logging.Error().Err(err).Str("event", ev.Name).Msg("queueing event delivery")
			metrics.DeliveryFailures.WithLabelValues(d.PushType).Inc()
		}
		return
	}

	// No durable queue; send asynchronously so the detection pipeline
	// never blocks on a slow endpoint.
	n := e.notifiers[d.PushType]
	if n == nil || !n.Enabled() {
		return
	}
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), e.sendTimeout)
		defer cancel()
		if err := n.Send(sendCtx, d); err != nil {
			logging.Warn().Err(err).Str("notifier", n.Name()).Str("event", d.Event.Name).
				Msg("event delivery failed")
			metrics.DeliveryFailures.WithLabelValues(n.Name()).Inc()
			return
		}
		metrics.EventsDelivered.WithLabelValues(n.Name()).Inc()
	}()
}

func (e *Emitter) enqueue(d Delivery) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshaling delivery: %w", err)
	}
	if _, err := e.queue.Append(data); err != nil {
		return err
	}
	metrics.WALPending.Inc()
	return nil
}
