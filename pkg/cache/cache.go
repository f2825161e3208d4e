// Package cache keeps the last successfully fetched document of every
// source in a SQLite file so a failed refresh can fall back to it.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/oakwood-commons/ccs/pkg/loader"
)

// Snapshot is a raw source document and when it was fetched.
type Snapshot struct {
	Format    loader.Format
	Payload   []byte
	FetchedAt time.Time
}

// Store is a SQLite-backed snapshot store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the cache file at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init cache %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		source TEXT PRIMARY KEY,
		format TEXT NOT NULL,
		payload BLOB NOT NULL,
		fetched_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Put replaces the snapshot of source.
func (s *Store) Put(source string, snap Snapshot) error {
	_, err := s.db.Exec(
		`INSERT INTO snapshots (source, format, payload, fetched_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(source) DO UPDATE SET format = excluded.format, payload = excluded.payload, fetched_at = excluded.fetched_at`,
		source, string(snap.Format), snap.Payload, snap.FetchedAt.UnixNano(),
	)
	return err
}

// Get returns the snapshot of source, reporting false when none is stored.
func (s *Store) Get(source string) (Snapshot, bool, error) {
	var (
		format  string
		payload []byte
		fetched int64
	)
	err := s.db.QueryRow(
		`SELECT format, payload, fetched_at FROM snapshots WHERE source = ?`, source,
	).Scan(&format, &payload, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	return Snapshot{Format: loader.Format(format), Payload: payload, FetchedAt: time.Unix(0, fetched)}, true, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
