// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package stream

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/wardsight/wardsight/internal/logging"
	"github.com/wardsight/wardsight/internal/metrics"
	"github.com/wardsight/wardsight/internal/models"
	"github.com/wardsight/wardsight/internal/sampler"
)

// WorkerOptions bound the capture loop. Zero values are replaced with the
// defaults used in production.
type WorkerOptions struct {
	// ReadPace is the delay between frame reads. Default 33ms (~30 fps).
	ReadPace time.Duration
	// QueueSize bounds the capture-to-sampling queue. Default 10.
	QueueSize int
	// ErrorThreshold is the number of consecutive read failures after which
	// the worker stops permanently with an error status. Default 100.
	ErrorThreshold int
}

func (o WorkerOptions) withDefaults() WorkerOptions {
	if o.ReadPace <= 0 {
		o.ReadPace = 33 * time.Millisecond
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 10
	}
	if o.ErrorThreshold <= 0 {
		o.ErrorThreshold = 100
	}
	return o
}

// Worker captures frames for one stream. It implements suture.Service; the
// supervisor restarts it on transient failures, while crossing the
// consecutive-error threshold stops it for good.
type Worker struct {
	opts       WorkerOptions
	sampler    *sampler.Sampler
	dispatcher Dispatcher

	mu        sync.RWMutex
	cfg       Config
	status    Status
	lastError string
	startedAt time.Time

	framesCaptured atomic.Uint64
	framesDropped  atomic.Uint64
	framesSampled  atomic.Uint64
	readErrors     atomic.Uint64
	lastFrameNS    atomic.Int64
}

// NewWorker creates a stopped worker. The caller registers it with a
// supervisor to start capturing.
func NewWorker(cfg Config, s *sampler.Sampler, d Dispatcher, opts WorkerOptions) *Worker {
	return &Worker{
		opts:       opts.withDefaults(),
		sampler:    s,
		dispatcher: d,
		cfg:        cfg,
		status:     StatusStopped,
	}
}

// Config returns a snapshot of the worker's stream configuration.
func (w *Worker) Config() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg
}

// SetConfig swaps the stream configuration. Sampling changes take effect via
// the shared sampler without restarting the capture loop.
func (w *Worker) SetConfig(cfg Config) {
	w.mu.Lock()
	w.cfg = cfg
	w.mu.Unlock()
}

// Status returns the current lifecycle state.
func (w *Worker) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}

func (w *Worker) setStatus(s Status, errMsg string) {
	w.mu.Lock()
	w.status = s
	w.lastError = errMsg
	if s == StatusRunning {
		w.startedAt = time.Now()
	}
	w.mu.Unlock()
}

// Stats returns a snapshot of the worker's counters.
func (w *Worker) Stats() Stats {
	w.mu.RLock()
	cfg, status, lastErr, startedAt := w.cfg, w.status, w.lastError, w.startedAt
	w.mu.RUnlock()

	st := Stats{
		StreamID:       cfg.StreamID,
		Status:         status,
		RiskLevel:      cfg.RiskLevel,
		Interval:       w.sampler.Interval(cfg.StreamID).Seconds(),
		FramesCaptured: w.framesCaptured.Load(),
		FramesDropped:  w.framesDropped.Load(),
		FramesSampled:  w.framesSampled.Load(),
		ReadErrors:     w.readErrors.Load(),
		LastError:      lastErr,
		StartedAt:      startedAt,
	}
	if ns := w.lastFrameNS.Load(); ns != 0 {
		st.LastFrameAt = time.Unix(0, ns)
	}
	return st
}

// String implements fmt.Stringer for supervisor logging.
func (w *Worker) String() string {
	return "stream-worker/" + w.Config().StreamID
}

// Serve implements suture.Service. It opens the source, runs the paced read
// loop and a sampling pump, and shuts both down when the context ends.
func (w *Worker) Serve(ctx context.Context) error {
	cfg := w.Config()
	w.setStatus(StatusStarting, "")

	src, err := OpenSource(ctx, cfg)
	if err != nil {
		w.setStatus(StatusError, err.Error())
		return fmt.Errorf("opening source: %w", err)
	}
	defer src.Close()

	w.setStatus(StatusRunning, "")
	metrics.StreamsRunning.Inc()
	defer metrics.StreamsRunning.Dec()

	logging.Info().
		Str("stream_id", cfg.StreamID).
		Str("source_type", string(cfg.SourceType)).
		Str("risk_level", string(cfg.RiskLevel)).
		Msg("stream worker started")

	frames := make(chan frameItem, w.opts.QueueSize)
	var pumpWG sync.WaitGroup
	pumpWG.Add(1)
	go func() {
		defer pumpWG.Done()
		w.pump(frames)
	}()
	defer func() {
		close(frames)
		pumpWG.Wait()
	}()

	err = w.readLoop(ctx, src, frames)
	switch {
	case ctx.Err() != nil:
		w.setStatus(StatusStopped, "")
		return ctx.Err()
	case err != nil:
		w.setStatus(StatusError, err.Error())
		return err
	default:
		w.setStatus(StatusStopped, "")
		return nil
	}
}

type frameItem struct {
	frame []byte
	fmt   string
	at    time.Time
}

func frameFromItem(streamID string, item frameItem) models.Frame {
	return models.Frame{
		StreamID:  streamID,
		Data:      item.frame,
		Format:    item.fmt,
		Timestamp: item.at,
	}
}

// readLoop reads frames at the configured pace until the context ends or the
// consecutive failure threshold is crossed.
func (w *Worker) readLoop(ctx context.Context, src Source, frames chan<- frameItem) error {
	streamID := w.Config().StreamID
	ticker := time.NewTicker(w.opts.ReadPace)
	defer ticker.Stop()

	consecutive := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		frame, err := src.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			consecutive++
			w.readErrors.Add(1)
			metrics.CaptureReadErrors.WithLabelValues(streamID).Inc()
			logging.Debug().
				Err(err).
				Str("stream_id", streamID).
				Int("consecutive", consecutive).
				Msg("frame read failed")

			if consecutive >= w.opts.ErrorThreshold {
				logging.Error().
					Str("stream_id", streamID).
					Int("threshold", w.opts.ErrorThreshold).
					Msg("stream exceeded consecutive read failures, stopping")
				return fmt.Errorf("stream %s: %d consecutive read failures: %w",
					streamID, consecutive, suture.ErrDoNotRestart)
			}
			continue
		}
		consecutive = 0

		w.framesCaptured.Add(1)
		w.lastFrameNS.Store(frame.Timestamp.UnixNano())
		metrics.FramesCaptured.WithLabelValues(streamID).Inc()

		item := frameItem{frame: frame.Data, fmt: frame.Format, at: frame.Timestamp}
		select {
		case frames <- item:
		default:
			// Queue full: shed the newest frame so detection keeps working
			// on the freshest data already queued.
			w.framesDropped.Add(1)
			metrics.FramesDropped.WithLabelValues(streamID, "capture").Inc()
		}
	}
}

// pump drains the capture queue, consults the sampling gate and submits
// admitted frames to the dispatch pool. It exits when the queue is closed.
func (w *Worker) pump(frames <-chan frameItem) {
	for item := range frames {
		cfg := w.Config()
		if !w.sampler.ShouldSample(cfg.StreamID, item.at) {
			continue
		}
		w.framesSampled.Add(1)
		metrics.FramesSampled.WithLabelValues(cfg.StreamID).Inc()

		frame := frameFromItem(cfg.StreamID, item)
		if err := w.dispatcher.Submit(frame, cfg); err != nil {
			w.framesDropped.Add(1)
			metrics.FramesDropped.WithLabelValues(cfg.StreamID, "dispatch").Inc()
			logging.Debug().
				Err(err).
				Str("stream_id", cfg.StreamID).
				Msg("dispatch rejected frame")
		}
	}
}
