// Package storage persists normalized datalink messages and their aggregate
// counters to SQLite, with a full-text shadow index for search.
package storage

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database holding messages, counters, alert state,
// and the full-text index. Exactly one goroutine writes; readers run
// concurrently under SQLite's own isolation.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open opens or creates the database at path, enables WAL, and brings the
// schema up to the current revision. A missing full-text index after
// migration is fatal.
func Open(path string, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	s := &Store{db: db, log: log}
	if err := s.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='messages_fts'`).Scan(&name)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("full-text index missing after migration: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
