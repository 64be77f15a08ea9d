// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/wardsight/wardsight/internal/eventstore"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

// ListEvents queries the event archive. Supported query parameters:
// session_id, name, category, since, until (RFC 3339), limit, offset.
func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "event archive not enabled")
		return
	}

	filter, err := eventFilterFromQuery(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	events, err := h.events.List(r.Context(), filter)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	total, err := h.events.Count(r.Context(), filter)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	respond(w, r, http.StatusOK, map[string]any{
		"events": events,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

func eventFilterFromQuery(r *http.Request) (eventstore.Filter, error) {
	q := r.URL.Query()
	filter := eventstore.Filter{
		SessionID: q.Get("session_id"),
		Name:      q.Get("name"),
		Category:  q.Get("category"),
		Limit:     defaultEventLimit,
	}

	if raw := q.Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, err
		}
		filter.Since = t
	}
	if raw := q.Get("until"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, err
		}
		filter.Until = t
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return filter, fmt.Errorf("invalid limit %q", raw)
		}
		filter.Limit = min(n, maxEventLimit)
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("invalid offset %q", raw)
		}
		filter.Offset = n
	}
	return filter, nil
}
