// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/wardsight/wardsight/internal/models"
	"github.com/wardsight/wardsight/internal/risk"
	"github.com/wardsight/wardsight/internal/sampler"
)

// fakeSource produces canned frames or errors under test control.
type fakeSource struct {
	mu     sync.Mutex
	frames int
	fail   bool
	closed bool
}

func (f *fakeSource) ReadFrame(ctx context.Context) (models.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return models.Frame{}, errors.New("decode failure")
	}
	f.frames++
	return models.Frame{
		StreamID:  "cam-01",
		Data:      []byte{0xff, 0xd8, 0xff},
		Format:    "jpeg",
		Timestamp: time.Now(),
	}, nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSource) setFail(fail bool) {
	f.mu.Lock()
	f.fail = fail
	f.mu.Unlock()
}

// recordingDispatcher captures submitted frames.
type recordingDispatcher struct {
	mu     sync.Mutex
	frames []models.Frame
	reject bool
}

func (d *recordingDispatcher) Submit(frame models.Frame, _ Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reject {
		return errors.New("backlog full")
	}
	d.frames = append(d.frames, frame)
	return nil
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.frames)
}

const testSourceType SourceType = "test"

func registerFakeSource(t *testing.T, src Source, openErr error) {
	t.Helper()
	RegisterSource(testSourceType, func(_ context.Context, _ Config) (Source, error) {
		if openErr != nil {
			return nil, openErr
		}
		return src, nil
	})
}

func testWorker(t *testing.T, src Source, d Dispatcher, opts WorkerOptions) (*Worker, *sampler.Sampler) {
	t.Helper()
	registerFakeSource(t, src, nil)

	s := sampler.New(risk.NewProfiles())
	cfg := Config{
		StreamID:   "cam-01",
		URL:        "test://cam-01",
		SourceType: testSourceType,
		RiskLevel:  risk.LevelHigh,
		Enabled:    true,
	}
	s.Configure(cfg.StreamID, cfg.RiskLevel, time.Nanosecond)
	return NewWorker(cfg, s, d, opts), s
}

func TestWorkerCapturesAndDispatches(t *testing.T) {
	src := &fakeSource{}
	d := &recordingDispatcher{}
	w, _ := testWorker(t, src, d, WorkerOptions{ReadPace: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Serve(ctx) }()

	deadline := time.After(2 * time.Second)
	for d.count() < 3 {
		select {
		case <-deadline:
			t.Fatalf("dispatcher received %d frames, want >= 3", d.count())
		case <-time.After(5 * time.Millisecond):
		}
	}

	if got := w.Status(); got != StatusRunning {
		t.Errorf("status while serving = %s, want running", got)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve returned %v, want context.Canceled", err)
	}
	if got := w.Status(); got != StatusStopped {
		t.Errorf("status after stop = %s, want stopped", got)
	}

	src.mu.Lock()
	closed := src.closed
	src.mu.Unlock()
	if !closed {
		t.Error("source was not closed on shutdown")
	}

	st := w.Stats()
	if st.FramesCaptured == 0 || st.FramesSampled == 0 {
		t.Errorf("stats not tracked: %+v", st)
	}
}

func TestWorkerStopsAfterConsecutiveErrors(t *testing.T) {
	src := &fakeSource{fail: true}
	d := &recordingDispatcher{}
	w, _ := testWorker(t, src, d, WorkerOptions{ReadPace: time.Millisecond, ErrorThreshold: 5})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := w.Serve(ctx)
	if !errors.Is(err, suture.ErrDoNotRestart) {
		t.Fatalf("Serve returned %v, want wrapped suture.ErrDoNotRestart", err)
	}
	if got := w.Status(); got != StatusError {
		t.Errorf("status = %s, want error", got)
	}
	if st := w.Stats(); st.ReadErrors < 5 {
		t.Errorf("read errors = %d, want >= 5", st.ReadErrors)
	}
}

func TestWorkerRecoversFromTransientErrors(t *testing.T) {
	src := &fakeSource{fail: true}
	d := &recordingDispatcher{}
	w, _ := testWorker(t, src, d, WorkerOptions{ReadPace: time.Millisecond, ErrorThreshold: 1000})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Serve(ctx) }()

	// Let a few failures accumulate, then recover the source.
	time.Sleep(20 * time.Millisecond)
	src.setFail(false)

	deadline := time.After(2 * time.Second)
	for d.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("worker never recovered after transient errors")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestWorkerOpenFailureSetsErrorStatus(t *testing.T) {
	registerFakeSource(t, nil, errors.New("connection refused"))

	s := sampler.New(risk.NewProfiles())
	cfg := Config{StreamID: "cam-02", URL: "test://x", SourceType: testSourceType}
	w := NewWorker(cfg, s, &recordingDispatcher{}, WorkerOptions{})

	if err := w.Serve(context.Background()); err == nil {
		t.Fatal("expected open error")
	}
	if got := w.Status(); got != StatusError {
		t.Errorf("status = %s, want error", got)
	}
}

func TestWorkerUnsampledFramesNotDispatched(t *testing.T) {
	src := &fakeSource{}
	d := &recordingDispatcher{}
	registerFakeSource(t, src, nil)

	s := sampler.New(risk.NewProfiles())
	cfg := Config{StreamID: "cam-03", URL: "test://x", SourceType: testSourceType, RiskLevel: risk.LevelLow}
	// One-hour interval admits only the first frame.
	s.Configure(cfg.StreamID, cfg.RiskLevel, time.Hour)
	w := NewWorker(cfg, s, d, WorkerOptions{ReadPace: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Serve(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	if got := d.count(); got != 1 {
		t.Errorf("dispatched %d frames, want exactly 1", got)
	}
	if st := w.Stats(); st.FramesCaptured < 2 {
		t.Errorf("captured %d frames, want several", st.FramesCaptured)
	}
}
