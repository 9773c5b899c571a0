package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/critic-sh/critic/internal/core/mcp"
	"github.com/critic-sh/critic/internal/data/db"
)

// ClientStore implements mcp.Store using SQLite.
type ClientStore struct {
	db *db.DB
}

var _ mcp.Store = (*ClientStore)(nil)

// NewClientStore creates a new SQLite-backed MCP client store.
func NewClientStore(db *db.DB) *ClientStore {
	return &ClientStore{db: db}
}

// Heartbeat upserts a client row by name and refreshes its lastSeenAt stamp.
func (s *ClientStore) Heartbeat(ctx context.Context, name, version, workingDir string) (mcp.Client, error) {
	now := time.Now()
	id := uuid.NewString()

	_, err := s.db.Conn().ExecContext(ctx,
		`INSERT INTO mcp_clients (id, name, version, working_dir, last_seen_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   version = excluded.version,
		   working_dir = excluded.working_dir,
		   last_seen_at = excluded.last_seen_at`,
		id, name, version, workingDir, now.UnixNano(),
	)
	if err != nil {
		return mcp.Client{}, fmt.Errorf("heartbeat client %q: %w", name, err)
	}

	return s.getByName(ctx, name)
}

// ListSeenSince returns clients whose heartbeat is at or after the cutoff,
// most-recently-seen first.
func (s *ClientStore) ListSeenSince(ctx context.Context, cutoff time.Time) ([]mcp.Client, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT id, name, version, working_dir, last_seen_at FROM mcp_clients
		 WHERE last_seen_at >= ? ORDER BY last_seen_at DESC`, cutoff.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer func() { _ = rows.Close() }()

	clients := make([]mcp.Client, 0)
	for rows.Next() {
		var c mcp.Client
		var lastSeen int64
		if err := rows.Scan(&c.ID, &c.Name, &c.Version, &c.WorkingDir, &lastSeen); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		c.LastSeenAt = time.Unix(0, lastSeen)
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// PruneBefore deletes client rows last seen before the cutoff. Housekeeping
// only; listing already excludes stale rows.
func (s *ClientStore) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.Conn().ExecContext(ctx,
		`DELETE FROM mcp_clients WHERE last_seen_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune clients: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune clients rows affected: %w", err)
	}
	return int(n), nil
}

func (s *ClientStore) getByName(ctx context.Context, name string) (mcp.Client, error) {
	var c mcp.Client
	var lastSeen int64
	err := s.db.Conn().QueryRowContext(ctx,
		`SELECT id, name, version, working_dir, last_seen_at FROM mcp_clients WHERE name = ?`, name,
	).Scan(&c.ID, &c.Name, &c.Version, &c.WorkingDir, &lastSeen)
	if err != nil {
		return mcp.Client{}, fmt.Errorf("get client %q: %w", name, err)
	}
	c.LastSeenAt = time.Unix(0, lastSeen)
	return c, nil
}
