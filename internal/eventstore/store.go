// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

// Package eventstore archives triggered events in DuckDB so operators can
// query detection history after the in-memory sessions are gone.
package eventstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/goccy/go-json"

	"github.com/wardsight/wardsight/internal/logging"
	"github.com/wardsight/wardsight/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id         VARCHAR PRIMARY KEY,
	session_id VARCHAR NOT NULL,
	event_name VARCHAR NOT NULL,
	event_type VARCHAR NOT NULL,
	timestamp  TIMESTAMP NOT NULL,
	confidence DOUBLE NOT NULL,
	details    VARCHAR
);
CREATE INDEX IF NOT EXISTS idx_events_session ON events (session_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_events_name ON events (event_name, timestamp);
`

// Store is the DuckDB-backed event archive.
type Store struct {
	db *sql.DB
}

// Filter narrows a List query. Zero values match everything.
type Filter struct {
	SessionID string
	Name      string
	Category  string
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
}

// Open creates or reopens the archive at path. An empty path opens an
// in-memory database.
func Open(path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("duckdb", path+"?access_mode=read_write")
	if err != nil {
		return nil, fmt.Errorf("opening event archive: %w", err)
	}
	// DuckDB works best with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating events schema: %w", err)
	}
	logging.Debug().Str("path", path).Msg("event archive opened")
	return &Store{db: db}, nil
}

// Save archives one event. Saving the same event ID twice is an error,
// the engine assigns a fresh UUID per trigger.
func (s *Store) Save(ctx context.Context, ev *models.Event) error {
	var details any
	if len(ev.Details) > 0 {
		data, err := json.Marshal(ev.Details)
		if err != nil {
			return fmt.Errorf("marshaling event details: %w", err)
		}
		details = string(data)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, session_id, event_name, event_type, timestamp, confidence, details)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.SessionID, ev.Name, ev.Category, ev.Timestamp, ev.Confidence, details)
	if err != nil {
		return fmt.Errorf("archiving event %s: %w", ev.ID, err)
	}
	return nil
}

// List returns archived events matching the filter, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]*models.Event, error) {
	query, args := buildQuery(
		"SELECT id, session_id, event_name, event_type, timestamp, confidence, details FROM events", f)
	query += " ORDER BY timestamp DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	if f.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying event archive: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		ev := &models.Event{}
		var details sql.NullString
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.Name, &ev.Category,
			&ev.Timestamp, &ev.Confidence, &details); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &ev.Details); err != nil {
				logging.Warn().Err(err).Str("id", ev.ID).Msg("undecodable event details")
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Count returns the number of archived events matching the filter.
func (s *Store) Count(ctx context.Context, f Filter) (int, error) {
	query, args := buildQuery("SELECT COUNT(*) FROM events", f)
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting archived events: %w", err)
	}
	return count, nil
}

func buildQuery(base string, f Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.SessionID != "" {
		conds = append(conds, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.Name != "" {
		conds = append(conds, "event_name = ?")
		args = append(args, f.Name)
	}
	if f.Category != "" {
		conds = append(conds, "event_type = ?")
		args = append(args, f.Category)
	}
	if !f.Since.IsZero() {
		conds = append(conds, "timestamp >= ?")
		args = append(args, f.Since)
	}
	if !f.Until.IsZero() {
		conds = append(conds, "timestamp <= ?")
		args = append(args, f.Until)
	}
	if len(conds) > 0 {
		base += " WHERE " + strings.Join(conds, " AND ")
	}
	return base, args
}

// Close closes the archive.
func (s *Store) Close() error {
	return s.db.Close()
}
