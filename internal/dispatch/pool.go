// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

// Package dispatch runs the bounded worker pool that encodes sampled frames
// and forwards them to the detection service. Submissions never block the
// capture path: a full backlog or a throttled stream sheds the frame.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/wardsight/wardsight/internal/logging"
	"github.com/wardsight/wardsight/internal/metrics"
	"github.com/wardsight/wardsight/internal/models"
	"github.com/wardsight/wardsight/internal/stream"
)

var (
	ErrSaturated = errors.New("dispatch backlog full")
	ErrThrottled = errors.New("stream dispatch rate exceeded")
)

// Handler processes one sampled frame end to end: encode, send to the
// detector and feed the results into the detection engine.
type Handler interface {
	Handle(ctx context.Context, frame models.Frame, cfg stream.Config) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, frame models.Frame, cfg stream.Config) error

func (f HandlerFunc) Handle(ctx context.Context, frame models.Frame, cfg stream.Config) error {
	return f(ctx, frame, cfg)
}

// Options configure the pool.
type Options struct {
	Workers        int           // default 4
	Backlog        int           // default 64
	PerStreamRate  float64       // sends per second, 0 disables throttling
	PerStreamBurst int           // default 2
	SendTimeout    time.Duration // default 5s
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.Backlog <= 0 {
		o.Backlog = 64
	}
	if o.PerStreamBurst <= 0 {
		o.PerStreamBurst = 2
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 5 * time.Second
	}
	return o
}

type task struct {
	frame models.Frame
	cfg   stream.Config
}

// Pool is the throttled dispatch worker pool. It implements suture.Service
// and stream.Dispatcher.
type Pool struct {
	opts    Options
	handler Handler
	tasks   chan task

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewPool creates a pool that hands every accepted frame to handler.
func NewPool(handler Handler, opts Options) *Pool {
	opts = opts.withDefaults()
	return &Pool{
		opts:     opts,
		handler:  handler,
		tasks:    make(chan task, opts.Backlog),
		limiters: make(map[string]*rate.Limiter),
	}
}

// Submit queues a frame for dispatch. It never blocks; frames are shed when
// the stream is over its rate or the backlog is full.
func (p *Pool) Submit(frame models.Frame, cfg stream.Config) error {
	if lim := p.limiter(cfg.StreamID); lim != nil && !lim.Allow() {
		metrics.DispatchFailures.WithLabelValues("throttled").Inc()
		return fmt.Errorf("%w: %s", ErrThrottled, cfg.StreamID)
	}

	select {
	case p.tasks <- task{frame: frame, cfg: cfg}:
		metrics.DispatchBacklog.Set(float64(len(p.tasks)))
		return nil
	default:
		metrics.DispatchFailures.WithLabelValues("saturated").Inc()
		return ErrSaturated
	}
}

// Forget drops the rate limiter state for a stream. Called when a stream is
// deleted so the map does not grow unbounded.
func (p *Pool) Forget(streamID string) {
	p.mu.Lock()
	delete(p.limiters, streamID)
	p.mu.Unlock()
}

func (p *Pool) limiter(streamID string) *rate.Limiter {
	if p.opts.PerStreamRate <= 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	lim, ok := p.limiters[streamID]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(p.opts.PerStreamRate), p.opts.PerStreamBurst)
		p.limiters[streamID] = lim
	}
	return lim
}

// Serve implements suture.Service: it runs the worker goroutines until the
// context is canceled.
func (p *Pool) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.work(ctx)
		}()
	}
	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logging.
func (p *Pool) String() string { return "dispatch-pool" }

func (p *Pool) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-p.tasks:
			metrics.DispatchBacklog.Set(float64(len(p.tasks)))
			p.run(ctx, t)
		}
	}
}

func (p *Pool) run(ctx context.Context, t task) {
	sendCtx, cancel := context.WithTimeout(ctx, p.opts.SendTimeout)
	defer cancel()

	if err := p.handler.Handle(sendCtx, t.frame, t.cfg); err != nil {
		logging.Warn().
			Err(err).
			Str("stream_id", t.cfg.StreamID).
			Msg("frame dispatch failed")
	}
}
