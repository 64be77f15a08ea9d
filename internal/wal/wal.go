// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

// Package wal is the durable delivery queue for emitted events. Entries are
// appended before any push attempt and removed only after a collaborator
// acknowledged the event, so a crash between trigger and delivery never
// loses an event.
package wal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/wardsight/wardsight/internal/logging"
)

// Entry is one undelivered event payload.
type Entry struct {
	ID   uint64
	At   time.Time
	Data []byte
}

// WAL is a Badger-backed append-only delivery queue. Keys are monotonically
// increasing sequence numbers, so Pending returns entries in append order.
type WAL struct {
	db  *badger.DB
	seq *badger.Sequence
}

// Open creates or reopens a WAL at dir.
func Open(dir string) (*WAL, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithSyncWrites(true)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening wal at %s: %w", dir, err)
	}
	seq, err := db.GetSequence([]byte("!seq"), 128)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening wal sequence: %w", err)
	}
	return &WAL{db: db, seq: seq}, nil
}

// entry layout: 8 bytes big-endian unix nanos, then the payload.
func encodeValue(at time.Time, data []byte) []byte {
	buf := make([]byte, 8+len(data))
	binary.BigEndian.PutUint64(buf, uint64(at.UnixNano()))
	copy(buf[8:], data)
	return buf
}

func decodeValue(val []byte) (time.Time, []byte, error) {
	if len(val) < 8 {
		return time.Time{}, nil, errors.New("wal entry too short")
	}
	at := time.Unix(0, int64(binary.BigEndian.Uint64(val)))
	data := make([]byte, len(val)-8)
	copy(data, val[8:])
	return at, data, nil
}

func key(id uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, id)
	return k
}

// Append stores a payload and returns its sequence ID.
func (w *WAL) Append(data []byte) (uint64, error) {
	id, err := w.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("wal sequence: %w", err)
	}
	err = w.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(id), encodeValue(time.Now(), data))
	})
	if err != nil {
		return 0, fmt.Errorf("wal append: %w", err)
	}
	return id, nil
}

// Pending returns up to limit undelivered entries, oldest first.
func (w *WAL) Pending(limit int) ([]Entry, error) {
	var entries []Entry
	err := w.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid() && len(entries) < limit; it.Next() {
			item := it.Item()
			if item.Key()[0] == '!' {
				continue // sequence bookkeeping key
			}
			id := binary.BigEndian.Uint64(item.Key())
			err := item.Value(func(val []byte) error {
				at, data, err := decodeValue(val)
				if err != nil {
					logging.Warn().Uint64("id", id).Err(err).Msg("skipping corrupt wal entry")
					return nil
				}
				entries = append(entries, Entry{ID: id, At: at, Data: data})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("wal scan: %w", err)
	}
	return entries, nil
}

// MarkDelivered removes an entry after successful delivery.
func (w *WAL) MarkDelivered(id uint64) error {
	err := w.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(id))
	})
	if err != nil {
		return fmt.Errorf("wal delete %d: %w", id, err)
	}
	return nil
}

// PendingCount returns the number of undelivered entries.
func (w *WAL) PendingCount() (int, error) {
	count := 0
	err := w.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if it.Item().Key()[0] != '!' {
				count++
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("wal count: %w", err)
	}
	return count, nil
}

// Close releases the sequence and closes the database.
func (w *WAL) Close() error {
	if err := w.seq.Release(); err != nil {
		logging.Warn().Err(err).Msg("releasing wal sequence")
	}
	return w.db.Close()
}
