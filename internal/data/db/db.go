// Package db owns the SQLite connection and schema for critic.
package db

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	maxOpenConns = 10
	maxIdleConns = 5
	busyTimeout  = 5000 // milliseconds
)

const schema = `
CREATE TABLE IF NOT EXISTS review_sessions (
    id                   TEXT PRIMARY KEY,
    repo_id              TEXT NOT NULL,
    branch               TEXT NOT NULL,
    base_branch_override TEXT NOT NULL DEFAULT '',
    created_at           INTEGER NOT NULL,
    UNIQUE (repo_id, branch)
);

CREATE TABLE IF NOT EXISTS comments (
    id          TEXT PRIMARY KEY,
    session_id  TEXT NOT NULL REFERENCES review_sessions(id),
    file_path   TEXT NOT NULL,
    line_start  INTEGER,
    line_end    INTEGER,
    side        TEXT NOT NULL DEFAULT '',
    content     TEXT NOT NULL,
    status      TEXT NOT NULL DEFAULT 'queued'
                CHECK (status IN ('queued', 'staged', 'sent', 'cancelled', 'resolved')),
    created_at  INTEGER NOT NULL,
    sent_at     INTEGER,
    resolved_at INTEGER,
    resolved_by TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS mcp_clients (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL UNIQUE,
    version      TEXT NOT NULL DEFAULT '',
    working_dir  TEXT NOT NULL DEFAULT '',
    last_seen_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS app_config (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_comments_session ON comments(session_id);
CREATE INDEX IF NOT EXISTS idx_comments_status ON comments(session_id, status);
CREATE INDEX IF NOT EXISTS idx_mcp_clients_seen ON mcp_clients(last_seen_at);
`

// DB wraps the SQL connection so stores share pooling and pragmas.
type DB struct {
	conn *sql.DB
}

// Open creates the database file in dataDir, applies pragmas, and runs the
// schema. The schema is idempotent.
func Open(dataDir string) (*DB, error) {
	dbPath := filepath.Join(dataDir, "critic.db")

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(on)", dbPath, busyTimeout)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(maxOpenConns)
	conn.SetMaxIdleConns(maxIdleConns)

	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Conn exposes the underlying connection to store implementations.
func (d *DB) Conn() *sql.DB {
	return d.conn
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.conn.Close()
}
