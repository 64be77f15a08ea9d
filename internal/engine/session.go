// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package engine

import (
	"sort"
	"time"

	"github.com/wardsight/wardsight/internal/models"
)

// Session holds the per-stream detection state: the bounded frame buffer,
// per-rule trigger state and the events emitted so far. All access goes
// through the SessionStore lock.
type Session struct {
	ID         string
	CreatedAt  time.Time
	LastUpdate time.Time

	// frames is a fixed-capacity ring; head points at the oldest entry.
	frames []*models.FrameDetections
	head   int
	count  int

	// states records when each rule (or rule_item) last fired. Presence of
	// a key is the first-trigger marker; the value backs cooldowns.
	states map[string]time.Time

	triggered []*models.Event
}

func newSession(id string, capacity int, now time.Time) *Session {
	return &Session{
		ID:         id,
		CreatedAt:  now,
		LastUpdate: now,
		frames:     make([]*models.FrameDetections, capacity),
		states:     make(map[string]time.Time),
	}
}

// Append adds a frame to the buffer, evicting the oldest when full.
func (s *Session) Append(frame *models.FrameDetections) {
	if s.count < len(s.frames) {
		s.frames[(s.head+s.count)%len(s.frames)] = frame
		s.count++
		return
	}
	s.frames[s.head] = frame
	s.head = (s.head + 1) % len(s.frames)
}

// Len returns the number of buffered frames.
func (s *Session) Len() int { return s.count }

// at returns the i-th buffered frame, oldest first.
func (s *Session) at(i int) *models.FrameDetections {
	return s.frames[(s.head+i)%len(s.frames)]
}

// LastN returns up to n most recent frames, oldest first. The returned slice
// is a copy of the ring order, not the ring itself.
func (s *Session) LastN(n int) []*models.FrameDetections {
	if n > s.count {
		n = s.count
	}
	out := make([]*models.FrameDetections, 0, n)
	for i := s.count - n; i < s.count; i++ {
		out = append(out, s.at(i))
	}
	return out
}

// RecentWithin returns the frames whose capture timestamp falls inside the
// trailing window ending at now, newest last. The scan walks backwards and
// stops at the first frame older than the window, mirroring buffer order.
func (s *Session) RecentWithin(window time.Duration, now time.Time) []*models.FrameDetections {
	var out []*models.FrameDetections
	for i := s.count - 1; i >= 0; i-- {
		f := s.at(i)
		if now.Sub(f.Timestamp) > window {
			break
		}
		out = append(out, f)
	}
	// Reverse to oldest-first for callers that care about order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// hasFired reports whether a trigger key has ever fired in this session.
func (s *Session) hasFired(key string) bool {
	_, ok := s.states[key]
	return ok
}

// lastFired returns when a trigger key last fired.
func (s *Session) lastFired(key string) (time.Time, bool) {
	t, ok := s.states[key]
	return t, ok
}

// markFired records a trigger for a key at the given time.
func (s *Session) markFired(key string, at time.Time) {
	s.states[key] = at
}

// ActiveStates returns the sorted trigger keys recorded for this session.
func (s *Session) ActiveStates() []string {
	keys := make([]string, 0, len(s.states))
	for k := range s.states {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Events returns a copy of the events emitted by this session.
func (s *Session) Events() []*models.Event {
	out := make([]*models.Event, len(s.triggered))
	copy(out, s.triggered)
	return out
}
