// Package mcp tracks externally-connected automation clients that can receive
// review comments via polling.
package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DefaultFreshness is the heartbeat window after which a client is treated as
// disconnected.
const DefaultFreshness = 5 * time.Minute

// Client is a registered remote client row.
type Client struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Version    string    `json:"version,omitempty"`
	WorkingDir string    `json:"workingDir,omitempty"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// Store defines persistence for client registrations.
type Store interface {
	// Heartbeat upserts a client by name and refreshes its lastSeenAt stamp.
	Heartbeat(ctx context.Context, name, version, workingDir string) (Client, error)
	// ListSeenSince returns clients seen at or after cutoff, newest first.
	ListSeenSince(ctx context.Context, cutoff time.Time) ([]Client, error)
	// PruneBefore deletes rows last seen before cutoff.
	PruneBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Status summarizes connected clients for display.
type Status struct {
	ClientCount int          `json:"clientCount"`
	Clients     []ClientInfo `json:"clients"`
}

// ClientInfo is the display shape of a connected client.
type ClientInfo struct {
	Name     string    `json:"name"`
	LastSeen time.Time `json:"lastSeen"`
}

// Registry exposes connected-client state derived from heartbeat rows.
// Rows older than the freshness window are excluded from listings but never
// deleted here; pruning is a separate housekeeping concern.
type Registry struct {
	store     Store
	freshness time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewRegistry creates a registry with the given freshness window
// (DefaultFreshness if zero).
func NewRegistry(store Store, freshness time.Duration, log zerolog.Logger) *Registry {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	return &Registry{
		store:     store,
		freshness: freshness,
		now:       time.Now,
		log:       log,
	}
}

// Heartbeat records a client registration refresh.
func (r *Registry) Heartbeat(ctx context.Context, name, version, workingDir string) (Client, error) {
	if name == "" {
		return Client{}, fmt.Errorf("client name is required")
	}
	c, err := r.store.Heartbeat(ctx, name, version, workingDir)
	if err != nil {
		return Client{}, err
	}
	r.log.Debug().Str("client", name).Str("working_dir", workingDir).Msg("client heartbeat")
	return c, nil
}

// ListConnected returns clients inside the freshness window, newest first.
func (r *Registry) ListConnected(ctx context.Context) ([]Client, error) {
	cutoff := r.now().Add(-r.freshness)
	clients, err := r.store.ListSeenSince(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list connected clients: %w", err)
	}
	return clients, nil
}

// GetStatus returns the display summary. ClientCount is always the length of
// the filtered list, never a separately tracked counter.
func (r *Registry) GetStatus(ctx context.Context) (Status, error) {
	clients, err := r.ListConnected(ctx)
	if err != nil {
		return Status{}, err
	}

	infos := make([]ClientInfo, 0, len(clients))
	for _, c := range clients {
		infos = append(infos, ClientInfo{Name: c.Name, LastSeen: c.LastSeenAt})
	}
	return Status{ClientCount: len(infos), Clients: infos}, nil
}
