// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

// Package stream implements the capture layer: per-stream workers that read
// frames from video sources, shed load through bounded queues and hand
// sampled frames to the dispatch pool.
package stream

import (
	"time"

	"github.com/wardsight/wardsight/internal/models"
	"github.com/wardsight/wardsight/internal/risk"
)

// Status is the lifecycle state of a stream worker.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusError    Status = "error"
)

// SourceType selects the capture implementation for a stream.
type SourceType string

const (
	// SourceMJPEG reads a multipart MJPEG stream over HTTP.
	SourceMJPEG SourceType = "mjpeg"
	// SourceFrameDir replays image files from a directory, oldest first.
	// Used for testing and for ingesting pre-extracted frame dumps.
	SourceFrameDir SourceType = "framedir"
)

// Config describes one registered stream.
type Config struct {
	StreamID   string     `json:"stream_id" validate:"required"`
	URL        string     `json:"url" validate:"required"`
	SourceType SourceType `json:"source_type"`
	RiskLevel  risk.Level `json:"risk_level"`

	// IntervalSeconds overrides the risk-derived sampling interval when
	// positive. Zero keeps the risk profile's interval.
	IntervalSeconds float64 `json:"interval_seconds" validate:"min=0"`

	Enabled bool `json:"enabled"`

	// PushEndpoint, when set, receives this stream's events instead of the
	// globally configured webhook. PushType selects the delivery protocol.
	PushEndpoint string `json:"push_endpoint,omitempty"`
	PushType     string `json:"push_type,omitempty" validate:"omitempty,oneof=webhook mqtt"`

	// DetectionConfig is forwarded opaquely to the detection service with
	// every sampled frame.
	DetectionConfig map[string]any `json:"detection_config,omitempty"`
}

// Interval returns the configured override as a duration, or zero when the
// risk profile should decide.
func (c Config) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(c.IntervalSeconds * float64(time.Second))
}

// Stats is a point-in-time snapshot of one worker's counters.
type Stats struct {
	StreamID       string     `json:"stream_id"`
	Status         Status     `json:"status"`
	RiskLevel      risk.Level `json:"risk_level"`
	Interval       float64    `json:"interval_seconds"`
	FramesCaptured uint64     `json:"frames_captured"`
	FramesDropped  uint64     `json:"frames_dropped"`
	FramesSampled  uint64     `json:"frames_sampled"`
	ReadErrors     uint64     `json:"read_errors"`
	LastFrameAt    time.Time  `json:"last_frame_at,omitzero"`
	LastError      string     `json:"last_error,omitempty"`
	StartedAt      time.Time  `json:"started_at,omitzero"`
}

// Dispatcher accepts sampled frames for encoding and transmission to the
// detection service. Submit must not block; saturated dispatchers return an
// error and the frame is shed.
type Dispatcher interface {
	Submit(frame models.Frame, cfg Config) error
}
