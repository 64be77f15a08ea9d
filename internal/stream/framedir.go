// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package stream

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/wardsight/wardsight/internal/models"
)

// frameDirSource replays image files from a directory in lexical order,
// wrapping around when the last file is reached.
type frameDirSource struct {
	streamID string
	files    []string
	next     int
}

func openFrameDir(_ context.Context, cfg Config) (Source, error) {
	entries, err := os.ReadDir(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("opening frame directory for stream %s: %w", cfg.StreamID, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, filepath.Join(cfg.URL, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("frame directory %s for stream %s contains no images", cfg.URL, cfg.StreamID)
	}
	sort.Strings(files)

	return &frameDirSource{streamID: cfg.StreamID, files: files}, nil
}

func (f *frameDirSource) ReadFrame(ctx context.Context) (models.Frame, error) {
	if err := ctx.Err(); err != nil {
		return models.Frame{}, err
	}

	path := f.files[f.next]
	f.next = (f.next + 1) % len(f.files)

	data, err := os.ReadFile(path)
	if err != nil {
		return models.Frame{}, fmt.Errorf("reading frame %s: %w", path, err)
	}

	format := "jpeg"
	if strings.EqualFold(filepath.Ext(path), ".png") {
		format = "png"
	}

	return models.Frame{
		StreamID:  f.streamID,
		Data:      data,
		Format:    format,
		Timestamp: time.Now(),
	}, nil
}

func (f *frameDirSource) Close() error { return nil }
