// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package emitter

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/wardsight/wardsight/internal/logging"
	"github.com/wardsight/wardsight/internal/metrics"
	"github.com/wardsight/wardsight/internal/wal"
)

// Forwarder drains the durable delivery queue, pushing each queued event
// through its notifier. Failed deliveries stay queued and are retried on
// the next tick until they succeed or exceed the maximum delivery age.
type Forwarder struct {
	queue   *wal.WAL
	emitter *Emitter

	interval    time.Duration
	maxAge      time.Duration
	batchSize   int
	sendTimeout time.Duration
}

// ForwarderOptions configures the delivery retry loop.
type ForwarderOptions struct {
	Interval    time.Duration // tick between drain passes
	MaxAge      time.Duration // entries older than this are dropped, 0 keeps forever
	BatchSize   int           // entries per drain pass
	SendTimeout time.Duration // per-delivery bound
}

func (o ForwarderOptions) withDefaults() ForwarderOptions {
	if o.Interval <= 0 {
		o.Interval = 2 * time.Second
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 64
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 10 * time.Second
	}
	return o
}

// NewForwarder creates a forwarder over the emitter's delivery queue.
func NewForwarder(queue *wal.WAL, em *Emitter, opts ForwarderOptions) *Forwarder {
	opts = opts.withDefaults()
	return &Forwarder{
		queue:       queue,
		emitter:     em,
		interval:    opts.Interval,
		maxAge:      opts.MaxAge,
		batchSize:   opts.BatchSize,
		sendTimeout: opts.SendTimeout,
	}
}

// Serve runs the drain loop until the context is canceled. It implements
// suture.Service.
func (f *Forwarder) Serve(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			f.drain(ctx)
		}
	}
}

// String names the service in supervisor logs.
func (f *Forwarder) String() string {
	return "event-forwarder"
}

func (f *Forwarder) drain(ctx context.Context) {
	entries, err := f.queue.Pending(f.batchSize)
	if err != nil {
		logging.Error().Err(err).Msg("scanning delivery queue")
		return
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		f.deliver(ctx, entry)
	}

	if count, err := f.queue.PendingCount(); err == nil {
		metrics.WALPending.Set(float64(count))
	}
}

func (f *Forwarder) deliver(ctx context.Context, entry wal.Entry) {
	var d Delivery
	if err := json.Unmarshal(entry.Data, &d); err != nil {
		logging.Error().Err(err).Uint64("id", entry.ID).Msg("dropping undecodable delivery")
		f.remove(entry.ID)
		return
	}

	if f.maxAge > 0 && time.Since(entry.At) > f.maxAge {
		logging.Warn().Uint64("id", entry.ID).Str("event", d.Event.Name).
			Time("queued_at", entry.At).Msg("dropping expired delivery")
		metrics.DeliveryFailures.WithLabelValues(d.PushType).Inc()
		f.remove(entry.ID)
		return
	}

	n := f.emitter.Notifier(d.PushType)
	if n == nil || !n.Enabled() {
		// Channel not available right now; the entry stays queued.
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, f.sendTimeout)
	err := n.Send(sendCtx, d)
	cancel()
	if err != nil {
		logging.Warn().Err(err).Uint64("id", entry.ID).Str("notifier", n.Name()).
			Str("event", d.Event.Name).Msg("delivery failed, will retry")
		metrics.DeliveryFailures.WithLabelValues(n.Name()).Inc()
		return
	}

	metrics.EventsDelivered.WithLabelValues(n.Name()).Inc()
	f.remove(entry.ID)
}

func (f *Forwarder) remove(id uint64) {
	if err := f.queue.MarkDelivered(id); err != nil {
		logging.Error().Err(err).Uint64("id", id).Msg("removing delivery queue entry")
	}
}
