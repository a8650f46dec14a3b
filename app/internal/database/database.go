package database

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// tsLayout is the fixed-width UTC timestamp format used in the samples
// table. Fixed width keeps lexicographic order equal to chronological
// order, so range scans can compare strings directly.
const tsLayout = "2006-01-02T15:04:05.000Z"

// Store is the sample store. The underlying *sql.DB pool acquires and
// releases a connection per statement, so no step of the orchestration
// loop holds the store for longer than its own unit of work.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the store at path and ensures the schema.
// Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Single writer; avoids SQLITE_BUSY between loop steps.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.EnsureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates all tables. Idempotent.
//
// samples carries the primary key (entity, ts) with ON CONFLICT DO
// NOTHING on insert: the first-written sample for a timestamp wins and
// later duplicates are dropped at the boundary, so downstream interval
// reconstruction never sees duplicate-timestamp ties.
func (s *Store) EnsureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS samples (
  entity TEXT NOT NULL,
  ts TEXT NOT NULL,
  status INTEGER NOT NULL,
  PRIMARY KEY (entity, ts)
);
CREATE INDEX IF NOT EXISTS idx_samples_ts ON samples(ts);

CREATE TABLE IF NOT EXISTS entity_metadata (
  entity TEXT PRIMARY KEY,
  name TEXT,
  organization TEXT,
  product TEXT,
  bu TEXT,
  tid TEXT,
  pdt TEXT,
  comment TEXT,
  updated_at TEXT
);

CREATE TABLE IF NOT EXISTS notification_profiles (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  filter_type TEXT NOT NULL DEFAULT 'all',
  entity_list TEXT NOT NULL DEFAULT '[]',
  webhook_url TEXT NOT NULL,
  enabled INTEGER NOT NULL DEFAULT 1,
  created_at TEXT NOT NULL
);
`)
	return err
}

func formatTS(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTS(v string) (time.Time, error) {
	return time.Parse(tsLayout, v)
}
