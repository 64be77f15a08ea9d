// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package stream

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/thejerf/suture/v4"

	"github.com/wardsight/wardsight/internal/logging"
	"github.com/wardsight/wardsight/internal/risk"
	"github.com/wardsight/wardsight/internal/sampler"
)

var (
	ErrNotFound       = errors.New("stream not found")
	ErrAlreadyExists  = errors.New("stream already registered")
	ErrAlreadyRunning = errors.New("stream already running")
	ErrNotRunning     = errors.New("stream not running")
	ErrMaxStreams     = errors.New("maximum concurrent streams reached")
)

// Supervisor is the subset of the suture supervisor the manager needs to
// start and stop workers.
type Supervisor interface {
	Add(svc suture.Service) suture.ServiceToken
	RemoveAndWait(token suture.ServiceToken, timeout time.Duration) error
}

// ManagerOptions configure the stream registry.
type ManagerOptions struct {
	Worker        WorkerOptions
	MaxConcurrent int           // default 20
	StopTimeout   time.Duration // default 5s
}

func (o ManagerOptions) withDefaults() ManagerOptions {
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 20
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = 5 * time.Second
	}
	return o
}

type entry struct {
	worker  *Worker
	token   suture.ServiceToken
	running bool
}

// Manager is the stream registry. It owns worker lifecycles, delegates
// supervision to suture and keeps the sampler in step with each stream's
// risk configuration.
type Manager struct {
	opts       ManagerOptions
	sup        Supervisor
	sampler    *sampler.Sampler
	dispatcher Dispatcher
	validate   *validator.Validate

	mu      sync.Mutex
	entries map[string]*entry
}

// NewManager creates an empty stream registry.
func NewManager(sup Supervisor, s *sampler.Sampler, d Dispatcher, opts ManagerOptions) *Manager {
	return &Manager{
		opts:       opts.withDefaults(),
		sup:        sup,
		sampler:    s,
		dispatcher: d,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		entries:    make(map[string]*entry),
	}
}

// Register adds a stream without starting it.
func (m *Manager) Register(cfg Config) error {
	if err := m.validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid stream config: %w", err)
	}
	level, err := risk.ParseLevel(string(cfg.RiskLevel))
	if err != nil {
		return fmt.Errorf("invalid stream config: %w", err)
	}
	cfg.RiskLevel = level

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[cfg.StreamID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, cfg.StreamID)
	}
	m.entries[cfg.StreamID] = &entry{
		worker: NewWorker(cfg, m.sampler, m.dispatcher, m.opts.Worker),
	}

	logging.Info().
		Str("stream_id", cfg.StreamID).
		Str("risk_level", string(cfg.RiskLevel)).
		Msg("stream registered")
	return nil
}

// Start begins capturing for a registered stream.
func (m *Manager) Start(streamID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[streamID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, streamID)
	}
	if e.running {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, streamID)
	}

	running := 0
	for _, other := range m.entries {
		if other.running {
			running++
		}
	}
	if running >= m.opts.MaxConcurrent {
		return fmt.Errorf("%w (%d)", ErrMaxStreams, m.opts.MaxConcurrent)
	}

	cfg := e.worker.Config()
	m.sampler.Configure(cfg.StreamID, cfg.RiskLevel, cfg.Interval())
	e.token = m.sup.Add(e.worker)
	e.running = true
	return nil
}

// Stop halts capturing for a stream, waiting up to the stop timeout for the
// worker to wind down. The stream stays registered.
func (m *Manager) Stop(streamID string) error {
	m.mu.Lock()
	e, ok := m.entries[streamID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, streamID)
	}
	if !e.running {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotRunning, streamID)
	}
	token := e.token
	e.running = false
	m.mu.Unlock()

	if err := m.sup.RemoveAndWait(token, m.opts.StopTimeout); err != nil {
		logging.Warn().
			Err(err).
			Str("stream_id", streamID).
			Msg("stream worker did not stop cleanly")
	}
	e.worker.setStatus(StatusStopped, "")

	logging.Info().Str("stream_id", streamID).Msg("stream stopped")
	return nil
}

// UpdateConfig replaces a stream's configuration. Sampling changes (risk
// level, interval override) apply immediately without restarting the worker;
// source changes restart the capture loop when the stream is running.
func (m *Manager) UpdateConfig(cfg Config) error {
	if err := m.validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid stream config: %w", err)
	}
	level, err := risk.ParseLevel(string(cfg.RiskLevel))
	if err != nil {
		return fmt.Errorf("invalid stream config: %w", err)
	}
	cfg.RiskLevel = level

	m.mu.Lock()
	e, ok := m.entries[cfg.StreamID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, cfg.StreamID)
	}
	old := e.worker.Config()
	e.worker.SetConfig(cfg)
	wasRunning := e.running
	m.mu.Unlock()

	if wasRunning {
		m.sampler.Configure(cfg.StreamID, cfg.RiskLevel, cfg.Interval())
	}

	sourceChanged := old.URL != cfg.URL || old.SourceType != cfg.SourceType
	if wasRunning && sourceChanged {
		if err := m.Stop(cfg.StreamID); err != nil {
			return err
		}
		return m.Start(cfg.StreamID)
	}

	logging.Info().
		Str("stream_id", cfg.StreamID).
		Str("risk_level", string(cfg.RiskLevel)).
		Bool("restarted", wasRunning && sourceChanged).
		Msg("stream config updated")
	return nil
}

// SetRisk changes only the risk level and interval override for a stream.
func (m *Manager) SetRisk(streamID string, level risk.Level, override time.Duration) error {
	m.mu.Lock()
	e, ok := m.entries[streamID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, streamID)
	}
	cfg := e.worker.Config()
	cfg.RiskLevel = level
	if override > 0 {
		cfg.IntervalSeconds = override.Seconds()
	} else {
		cfg.IntervalSeconds = 0
	}
	e.worker.SetConfig(cfg)
	running := e.running
	m.mu.Unlock()

	if running {
		m.sampler.Configure(streamID, level, override)
	}
	return nil
}

// Delete stops a stream if needed and removes it from the registry.
func (m *Manager) Delete(streamID string) error {
	m.mu.Lock()
	e, ok := m.entries[streamID]
	running := ok && e.running
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, streamID)
	}

	if running {
		if err := m.Stop(streamID); err != nil && !errors.Is(err, ErrNotRunning) {
			return err
		}
	}

	m.mu.Lock()
	delete(m.entries, streamID)
	m.mu.Unlock()
	m.sampler.Remove(streamID)

	logging.Info().Str("stream_id", streamID).Msg("stream deleted")
	return nil
}

// Get returns the configuration of a registered stream.
func (m *Manager) Get(streamID string) (Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[streamID]
	if !ok {
		return Config{}, fmt.Errorf("%w: %s", ErrNotFound, streamID)
	}
	return e.worker.Config(), nil
}

// List returns all registered stream configurations ordered by stream ID.
func (m *Manager) List() []Config {
	m.mu.Lock()
	configs := make([]Config, 0, len(m.entries))
	for _, e := range m.entries {
		configs = append(configs, e.worker.Config())
	}
	m.mu.Unlock()

	sort.Slice(configs, func(i, j int) bool { return configs[i].StreamID < configs[j].StreamID })
	return configs
}

// Stats returns the counters for one stream.
func (m *Manager) Stats(streamID string) (Stats, error) {
	m.mu.Lock()
	e, ok := m.entries[streamID]
	m.mu.Unlock()
	if !ok {
		return Stats{}, fmt.Errorf("%w: %s", ErrNotFound, streamID)
	}
	return e.worker.Stats(), nil
}

// StatsAll returns counters for every registered stream, ordered by ID.
func (m *Manager) StatsAll() []Stats {
	m.mu.Lock()
	workers := make([]*Worker, 0, len(m.entries))
	for _, e := range m.entries {
		workers = append(workers, e.worker)
	}
	m.mu.Unlock()

	stats := make([]Stats, 0, len(workers))
	for _, w := range workers {
		stats = append(stats, w.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].StreamID < stats[j].StreamID })
	return stats
}

// StartAll starts every enabled registered stream, collecting errors.
func (m *Manager) StartAll() error {
	var errs []error
	for _, cfg := range m.List() {
		if !cfg.Enabled {
			continue
		}
		if err := m.Start(cfg.StreamID); err != nil && !errors.Is(err, ErrAlreadyRunning) {
			errs = append(errs, fmt.Errorf("starting %s: %w", cfg.StreamID, err))
		}
	}
	return errors.Join(errs...)
}

// StopAll stops every running stream.
func (m *Manager) StopAll() error {
	var errs []error
	for _, cfg := range m.List() {
		if err := m.Stop(cfg.StreamID); err != nil && !errors.Is(err, ErrNotRunning) {
			errs = append(errs, fmt.Errorf("stopping %s: %w", cfg.StreamID, err))
		}
	}
	return errors.Join(errs...)
}
