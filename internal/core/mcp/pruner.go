package mcp

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultRetention is how long a stale heartbeat row is kept before the
// pruner removes it. Stale rows are already invisible to listings; pruning
// is pure housekeeping.
const DefaultRetention = 24 * time.Hour

// StartPruner deletes heartbeat rows older than retention on a fixed
// interval until ctx is cancelled. Intended to run as a background goroutine.
func StartPruner(ctx context.Context, store Store, interval, retention time.Duration, log zerolog.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	log = log.With().Str("cmp", "mcp-pruner").Logger()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PruneBefore(ctx, time.Now().Add(-retention))
			if err != nil {
				log.Warn().Err(err).Msg("prune stale clients failed")
				continue
			}
			if n > 0 {
				log.Debug().Int("pruned", n).Msg("pruned stale client rows")
			}
		}
	}
}
