// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package stream

import (
	"context"
	"fmt"
	"sync"

	"github.com/wardsight/wardsight/internal/models"
)

// Source reads frames from a single video stream. Implementations are owned
// by exactly one worker goroutine; they do not need to be safe for concurrent
// use.
type Source interface {
	// ReadFrame blocks until the next frame is available or the context is
	// canceled. The returned slice is owned by the caller.
	ReadFrame(ctx context.Context) (models.Frame, error)
	Close() error
}

// OpenFunc creates a Source for a stream configuration.
type OpenFunc func(ctx context.Context, cfg Config) (Source, error)

var (
	openersMu sync.RWMutex
	openers   = map[SourceType]OpenFunc{}
)

// RegisterSource installs an opener for a source type. Later registrations
// for the same type win, which lets tests substitute fake sources.
func RegisterSource(t SourceType, open OpenFunc) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[t] = open
}

// OpenSource creates a Source for cfg. An empty SourceType defaults to MJPEG.
func OpenSource(ctx context.Context, cfg Config) (Source, error) {
	t := cfg.SourceType
	if t == "" {
		t = SourceMJPEG
	}

	openersMu.RLock()
	open, ok := openers[t]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown source type %q for stream %s", t, cfg.StreamID)
	}
	return open(ctx, cfg)
}

func init() {
	RegisterSource(SourceMJPEG, openMJPEG)
	RegisterSource(SourceFrameDir, openFrameDir)
}
