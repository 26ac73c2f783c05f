// Package sessionstore provides SQLite-backed persistence of clueword sessions.
package sessionstore

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	session_name       TEXT NOT NULL,
	case_number        TEXT NOT NULL DEFAULT '',
	police_station     TEXT NOT NULL DEFAULT '',
	district           TEXT NOT NULL DEFAULT '',
	cr_number          TEXT NOT NULL DEFAULT '',
	speaker_name       TEXT NOT NULL DEFAULT '',
	question_filename  TEXT NOT NULL DEFAULT '',
	control_filename   TEXT NOT NULL DEFAULT '',
	question_file_path TEXT NOT NULL DEFAULT '',
	control_file_path  TEXT NOT NULL DEFAULT '',
	annotations        TEXT NOT NULL DEFAULT '{"question":[],"control":[]}',
	bandpass_enabled   INTEGER NOT NULL DEFAULT 0,
	created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);
`

// DB wraps a sql.DB with session-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("sessionstore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sessionstore: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sessionstore: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
