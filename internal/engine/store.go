// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package engine

import (
	"context"
	"sync"
	"time"

	"github.com/wardsight/wardsight/internal/logging"
	"github.com/wardsight/wardsight/internal/metrics"
	"github.com/wardsight/wardsight/internal/models"
)

// StoreOptions configure the session store.
type StoreOptions struct {
	// BufferCapacity bounds each session's frame buffer. Default 1000.
	BufferCapacity int
	// SessionTTL is the idle time after which a session is evicted.
	// Default 30m.
	SessionTTL time.Duration
	// SweepInterval is how often the TTL sweep runs. Default 5m.
	SweepInterval time.Duration
	// Now is the clock, injectable for tests. Default time.Now.
	Now func() time.Time
}

func (o StoreOptions) withDefaults() StoreOptions {
	if o.BufferCapacity <= 0 {
		o.BufferCapacity = 1000
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = 30 * time.Minute
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = 5 * time.Minute
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// SessionStatus is the introspection view of one session.
type SessionStatus struct {
	Exists          bool      `json:"exists"`
	SessionID       string    `json:"session_id,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitzero"`
	LastUpdate      time.Time `json:"last_update,omitzero"`
	FrameCount      int       `json:"frame_count"`
	TriggeredEvents int       `json:"triggered_events"`
	ActiveStates    []string  `json:"active_states,omitempty"`
}

// SessionStore owns every live session behind one mutex. Frame processing,
// introspection and the TTL sweep all serialize on it; rule evaluation is
// cheap enough that finer-grained locking has not been worth the complexity.
type SessionStore struct {
	opts StoreOptions

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionStore creates an empty store.
func NewSessionStore(opts StoreOptions) *SessionStore {
	return &SessionStore{
		opts:     opts.withDefaults(),
		sessions: make(map[string]*Session),
	}
}

// withSession runs fn with the session for id, creating it lazily. The
// session lock is held for the duration of fn.
func (st *SessionStore) withSession(id string, fn func(*Session)) {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[id]
	if !ok {
		sess = newSession(id, st.opts.BufferCapacity, st.opts.Now())
		st.sessions[id] = sess
		metrics.SessionsActive.Set(float64(len(st.sessions)))
		logging.Debug().Str("session_id", id).Msg("session created")
	}
	fn(sess)
}

// Status returns the introspection view for a session.
func (st *SessionStore) Status(id string) SessionStatus {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[id]
	if !ok {
		return SessionStatus{Exists: false}
	}
	return SessionStatus{
		Exists:          true,
		SessionID:       sess.ID,
		CreatedAt:       sess.CreatedAt,
		LastUpdate:      sess.LastUpdate,
		FrameCount:      sess.Len(),
		TriggeredEvents: len(sess.triggered),
		ActiveStates:    sess.ActiveStates(),
	}
}

// Events returns the events a session has emitted so far.
func (st *SessionStore) Events(id string) []*models.Event {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[id]
	if !ok {
		return nil
	}
	return sess.Events()
}

// Clear removes a session and all its state. Returns false when the session
// does not exist.
func (st *SessionStore) Clear(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.sessions[id]; !ok {
		return false
	}
	delete(st.sessions, id)
	metrics.SessionsActive.Set(float64(len(st.sessions)))
	logging.Info().Str("session_id", id).Msg("session cleared")
	return true
}

// Count returns the number of live sessions.
func (st *SessionStore) Count() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep evicts sessions idle longer than the TTL and returns how many were
// removed.
func (st *SessionStore) Sweep(now time.Time) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	var expired []string
	for id, sess := range st.sessions {
		if now.Sub(sess.LastUpdate) > st.opts.SessionTTL {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(st.sessions, id)
		metrics.SessionsEvicted.Inc()
	}
	if len(expired) > 0 {
		metrics.SessionsActive.Set(float64(len(st.sessions)))
		logging.Info().Int("evicted", len(expired)).Msg("session TTL sweep")
	}
	return len(expired)
}

// Serve implements suture.Service: it runs the periodic TTL sweep until the
// context is canceled.
func (st *SessionStore) Serve(ctx context.Context) error {
	ticker := time.NewTicker(st.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			st.Sweep(st.opts.Now())
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (st *SessionStore) String() string { return "session-sweeper" }
