// Package store opens the assistant's local sqlite database.
//
// Two tables live here: the append-only memory log and the normalized-key
// response cache. Both use upsert/append semantics that tolerate concurrent
// writers, so request workers and skill pollers never coordinate around it.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS memories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME NOT NULL,
	text TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS responses (
	key TEXT PRIMARY KEY,
	response TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
`

// DB wraps the sqlite handle shared by the cache and the memory log.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	// One writer at a time; sqlite serializes anyway and a single
	// connection avoids SQLITE_BUSY between workers and pollers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	return &DB{db: db}, nil
}

// SQL exposes the underlying handle for the cache and memory packages.
func (d *DB) SQL() *sql.DB {
	return d.db
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}
