// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package stream

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/wardsight/wardsight/internal/models"
)

// mjpegSource reads a multipart/x-mixed-replace MJPEG stream, the common
// output format of IP cameras and restreamers.
type mjpegSource struct {
	streamID string
	resp     *http.Response
	reader   *multipart.Reader
	cancel   context.CancelFunc
}

func openMJPEG(ctx context.Context, cfg Config) (Source, error) {
	// The request context outlives the open call; it is canceled by Close
	// so a blocked body read unsticks during shutdown.
	reqCtx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, cfg.URL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("building request for stream %s: %w", cfg.StreamID, err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("connecting to stream %s: %w", cfg.StreamID, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("stream %s returned status %d", cfg.StreamID, resp.StatusCode)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("stream %s is not multipart MJPEG (content-type %q)",
			cfg.StreamID, resp.Header.Get("Content-Type"))
	}
	boundary := params["boundary"]
	if boundary == "" {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("stream %s multipart response has no boundary", cfg.StreamID)
	}

	return &mjpegSource{
		streamID: cfg.StreamID,
		resp:     resp,
		reader:   multipart.NewReader(resp.Body, boundary),
		cancel:   cancel,
	}, nil
}

func (m *mjpegSource) ReadFrame(ctx context.Context) (models.Frame, error) {
	if err := ctx.Err(); err != nil {
		return models.Frame{}, err
	}

	part, err := m.reader.NextPart()
	if err != nil {
		if err == io.EOF {
			return models.Frame{}, fmt.Errorf("stream %s ended: %w", m.streamID, err)
		}
		return models.Frame{}, fmt.Errorf("reading part from stream %s: %w", m.streamID, err)
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		return models.Frame{}, fmt.Errorf("reading frame body from stream %s: %w", m.streamID, err)
	}
	if len(data) == 0 {
		return models.Frame{}, fmt.Errorf("stream %s produced an empty frame", m.streamID)
	}

	return models.Frame{
		StreamID:  m.streamID,
		Data:      data,
		Format:    "jpeg",
		Timestamp: time.Now(),
	}, nil
}

func (m *mjpegSource) Close() error {
	m.cancel()
	return m.resp.Body.Close()
}
