// Package buildlog persists build history in SQLite.
package buildlog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one completed build.
type Record struct {
	ID       string
	Trigger  string // poll|webhook|manual|startup
	Outcome  string // success|warning|failed|canceled
	Pages    int
	Warnings int
	Started  time.Time
	Duration time.Duration
}

// Store is a SQLite-backed build history.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates a new store. Use ":memory:" for an in-memory database, or a
// file path for persistent storage.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		trigger TEXT NOT NULL,
		outcome TEXT NOT NULL,
		pages INTEGER NOT NULL,
		warnings INTEGER NOT NULL,
		started INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_builds_started ON builds(started);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append records a completed build.
func (s *Store) Append(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO builds (id, trigger, outcome, pages, warnings, started, duration_ms) VALUES (?, ?, ?, ?, ?, ?, ?)",
		rec.ID, rec.Trigger, rec.Outcome, rec.Pages, rec.Warnings, rec.Started.Unix(), rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert build record: %w", err)
	}
	return nil
}

// Recent returns up to n builds, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, trigger, outcome, pages, warnings, started, duration_ms FROM builds ORDER BY started DESC, id LIMIT ?",
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var started int64
		var durationMS int64
		if err := rows.Scan(&rec.ID, &rec.Trigger, &rec.Outcome, &rec.Pages, &rec.Warnings, &started, &durationMS); err != nil {
			return nil, fmt.Errorf("scan build record: %w", err)
		}
		rec.Started = time.Unix(started, 0).UTC()
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate builds: %w", err)
	}
	return out, nil
}

// Last returns the most recent build, or nil when the history is empty.
func (s *Store) Last(ctx context.Context) (*Record, error) {
	recs, err := s.Recent(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
