// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

// Package sampler implements the per-stream adaptive sampling gate.
//
// The gate decides, independently of capture cadence, whether "now" is a
// valid moment to forward a frame downstream. Every stream has its own entry
// with atomic bookkeeping so concurrent capture loops never contend on a
// shared lock in the hot path.
package sampler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/wardsight/wardsight/internal/logging"
	"github.com/wardsight/wardsight/internal/risk"
)

// gate holds the sampling state for one stream. interval and lastSent are
// nanosecond values accessed atomically; the registry lock is only taken to
// look the gate up or reconfigure it.
type gate struct {
	interval atomic.Int64 // nanoseconds
	lastSent atomic.Int64 // unix nanoseconds; 0 means never sent
}

// Sampler decides which captured frames are forwarded for detection.
type Sampler struct {
	profiles *risk.Profiles

	mu    sync.RWMutex
	gates map[string]*gate
}

// New creates a sampler backed by the given risk profile registry.
func New(profiles *risk.Profiles) *Sampler {
	return &Sampler{
		profiles: profiles,
		gates:    make(map[string]*gate),
	}
}

// Configure registers or updates a stream's sampling interval. When override
// is zero the interval is derived from the risk level's profile. The change
// takes effect on the next ShouldSample call; the stream's worker is never
// restarted.
func (s *Sampler) Configure(streamID string, level risk.Level, override time.Duration) {
	interval := override
	if interval <= 0 {
		interval = s.profiles.Interval(level)
	}

	s.mu.Lock()
	g, ok := s.gates[streamID]
	if !ok {
		g = &gate{}
		s.gates[streamID] = g
	}
	s.mu.Unlock()

	g.interval.Store(int64(interval))

	logging.Debug().
		Str("stream_id", streamID).
		Str("risk_level", string(level)).
		Dur("interval", interval).
		Msg("sampler configured")
}

// Remove drops a stream's gate. Safe to call for unknown streams.
func (s *Sampler) Remove(streamID string) {
	s.mu.Lock()
	delete(s.gates, streamID)
	s.mu.Unlock()
}

// Interval returns the effective sampling interval for a stream, or zero if
// the stream is not registered.
func (s *Sampler) Interval(streamID string) time.Duration {
	s.mu.RLock()
	g, ok := s.gates[streamID]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	return time.Duration(g.interval.Load())
}

// LastSent returns the time of the last accepted sample for a stream, or the
// zero time if nothing was sampled yet.
func (s *Sampler) LastSent(streamID string) time.Time {
	s.mu.RLock()
	g, ok := s.gates[streamID]
	s.mu.RUnlock()
	if !ok {
		return time.Time{}
	}
	ns := g.lastSent.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// ShouldSample reports whether a frame captured at now should be dispatched
// for this stream, and on true atomically advances the stream's last-sent
// timestamp. The interval comparison is inclusive: a frame exactly one
// interval after the previous accepted sample passes.
//
// Unregistered streams never sample. The first call for a registered stream
// always passes.
func (s *Sampler) ShouldSample(streamID string, now time.Time) bool {
	s.mu.RLock()
	g, ok := s.gates[streamID]
	s.mu.RUnlock()
	if !ok {
		return false
	}

	interval := g.interval.Load()
	if interval <= 0 {
		return false
	}

	nowNS := now.UnixNano()
	for {
		last := g.lastSent.Load()
		if last != 0 && nowNS-last < interval {
			return false
		}
		if g.lastSent.CompareAndSwap(last, nowNS) {
			return true
		}
		// Lost a race with a concurrent caller; re-check against the
		// winner's timestamp.
	}
}
