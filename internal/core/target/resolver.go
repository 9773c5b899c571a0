package target

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/critic-sh/critic/internal/core/detect"
	"github.com/critic-sh/critic/internal/core/mcp"
)

// Resolver merges the remote client registry with the permanent clipboard
// fallback into a single ranked target list.
type Resolver struct {
	registry *mcp.Registry
	log      zerolog.Logger
}

// NewResolver creates a resolver over the given registry.
func NewResolver(registry *mcp.Registry, log zerolog.Logger) *Resolver {
	return &Resolver{registry: registry, log: log}
}

// List returns all delivery targets: connected remote clients in registry
// order (most-recently-seen first), then exactly one clipboard entry, always
// last. A registry failure degrades to clipboard-only and is reported via the
// returned error alongside the still-usable list — resolution never fails
// outright.
func (r *Resolver) List(ctx context.Context) ([]Target, error) {
	clients, err := r.registry.ListConnected(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("client registry query failed, degrading to clipboard-only")
		return []Target{Clipboard{}}, err
	}

	targets := make([]Target, 0, len(clients)+1)
	for _, c := range clients {
		targets = append(targets, McpClient{
			ID:         c.ID,
			Name:       c.Name,
			WorkingDir: c.WorkingDir,
			LastSeen:   c.LastSeenAt,
		})
	}
	targets = append(targets, Clipboard{})
	return targets, nil
}

// AutoSelect picks a default target when the choice is unambiguous:
// the first remote client when exactly one unambiguous agent session was
// detected, the clipboard when no agent context exists at all, and nil when
// multiple agents are in play — misdelivering review feedback to the wrong
// live session is worse than forcing an explicit choice.
func AutoSelect(targets []Target, agentSessions []detect.Session) Target {
	if len(targets) == 0 {
		return nil
	}

	best := bestAgentSession(agentSessions)
	if best != nil && best.MultipleAgents {
		return nil
	}
	if countAgentSessions(agentSessions) > 1 {
		return nil
	}

	if best != nil {
		for _, t := range targets {
			if t.TargetType() == TypeMcpClient {
				return t
			}
		}
	}

	// Clipboard is always present and always last.
	return targets[len(targets)-1]
}

// bestAgentSession returns the first session with a detected agent, ranked by
// the fixed agent priority order.
func bestAgentSession(sessions []detect.Session) *detect.Session {
	var best *detect.Session
	bestRank := -1
	for i := range sessions {
		s := &sessions[i]
		if s.DetectedProcess == "" {
			continue
		}
		r := agentRank(s.DetectedProcess)
		if best == nil || r < bestRank {
			best = s
			bestRank = r
		}
	}
	return best
}

func countAgentSessions(sessions []detect.Session) int {
	n := 0
	for _, s := range sessions {
		if s.DetectedProcess != "" {
			n++
		}
	}
	return n
}

func agentRank(agent string) int {
	for i, a := range detect.DefaultAgents {
		if a == agent {
			return i
		}
	}
	return len(detect.DefaultAgents)
}
