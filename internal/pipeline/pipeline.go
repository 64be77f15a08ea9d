// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

// Package pipeline is the per-frame processing path behind the dispatch
// pool: detect, evaluate rules, then deliver any triggered events.
package pipeline

import (
	"context"
	"fmt"

	"github.com/wardsight/wardsight/internal/logging"
	"github.com/wardsight/wardsight/internal/models"
	"github.com/wardsight/wardsight/internal/risk"
	"github.com/wardsight/wardsight/internal/stream"
)

// Detector produces per-frame detection results.
type Detector interface {
	Detect(ctx context.Context, frame models.Frame, detCfg map[string]any) (*models.FrameDetections, error)
}

// Engine evaluates detection results against the stateful rule set.
type Engine interface {
	ProcessFrame(det *models.FrameDetections) []*models.Event
}

// Archiver persists triggered events.
type Archiver interface {
	Save(ctx context.Context, ev *models.Event) error
}

// EvidenceStore uploads the triggering frame for an event.
type EvidenceStore interface {
	Upload(ctx context.Context, frame models.Frame, ev *models.Event) error
}

// EventEmitter pushes a triggered event to its delivery channels.
type EventEmitter interface {
	Emit(ctx context.Context, ev *models.Event, cfg stream.Config)
}

// Pipeline implements dispatch.Handler. Archive, evidence, and emitter are
// optional; a nil collaborator skips that step.
type Pipeline struct {
	detector Detector
	engine   Engine
	profiles *risk.Profiles
	archive  Archiver
	evidence EvidenceStore
	emitter  EventEmitter
}

// Options wires the pipeline collaborators.
type Options struct {
	Detector Detector
	Engine   Engine
	Profiles *risk.Profiles
	Archive  Archiver
	Evidence EvidenceStore
	Emitter  EventEmitter
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	return &Pipeline{
		detector: opts.Detector,
		engine:   opts.Engine,
		profiles: opts.Profiles,
		archive:  opts.Archive,
		evidence: opts.Evidence,
		emitter:  opts.Emitter,
	}
}

// Handle processes one sampled frame end to end.
func (p *Pipeline) Handle(ctx context.Context, frame models.Frame, cfg stream.Config) error {
	det, err := p.detector.Detect(ctx, frame, p.detectionConfig(cfg))
	if err != nil {
		return fmt.Errorf("detecting frame from %s: %w", frame.StreamID, err)
	}
	if det == nil {
		return nil
	}

	events := p.engine.ProcessFrame(det)
	for _, ev := range events {
		p.deliver(ctx, frame, ev, cfg)
	}
	return nil
}

// detectionConfig merges the stream's risk tier parameters with any
// per-stream overrides. Overrides win on key collisions.
func (p *Pipeline) detectionConfig(cfg stream.Config) map[string]any {
	detCfg := make(map[string]any)
	if p.profiles != nil {
		level, err := risk.ParseLevel(string(cfg.RiskLevel))
		if err != nil {
			level = risk.LevelMedium
		}
		prof := p.profiles.Get(level)
		detCfg["confidence_threshold"] = prof.ConfidenceThreshold
		detCfg["max_objects"] = prof.MaxObjects
		detCfg["detection_classes"] = prof.DetectionClasses
	}
	for k, v := range cfg.DetectionConfig {
		detCfg[k] = v
	}
	return detCfg
}

func (p *Pipeline) deliver(ctx context.Context, frame models.Frame, ev *models.Event, cfg stream.Config) {
	if p.evidence != nil {
		if err := p.evidence.Upload(ctx, frame, ev); err != nil {
			logging.Warn().Err(err).Str("event", ev.Name).Str("stream_id", frame.StreamID).
				Msg("evidence upload failed")
		}
	}
	if p.archive != nil {
		if err := p.archive.Save(ctx, ev); err != nil {
			logging.Error().Err(err).Str("event", ev.Name).Str("id", ev.ID).
				Msg("archiving event failed")
		}
	}
	if p.emitter != nil {
		p.emitter.Emit(ctx, ev, cfg)
	}

	logging.Info().
		Str("stream_id", frame.StreamID).
		Str("event", ev.Name).
		Str("category", ev.Category).
		Float64("confidence", ev.Confidence).
		Msg("behavior event triggered")
}
