package detect

import "strings"

// DefaultAgents is the fixed, priority-ordered coding agent list. Order
// doubles as the tie-break order when several agents are detected in one
// session.
var DefaultAgents = []string{"claude", "opencode", "aider", "cursor", "copilot", "gemini", "codex"}

// matchAgent returns the first agent in the priority list whose name appears
// in the command, or "" if none matches. Matching is a case-insensitive
// substring check so wrappers like "node /usr/bin/claude" still hit.
func matchAgent(agents []string, command string) string {
	if command == "" {
		return ""
	}
	lower := strings.ToLower(command)
	for _, agent := range agents {
		if strings.Contains(lower, agent) {
			return agent
		}
	}
	return ""
}

// agentRank returns the priority index of an agent (lower is better), or
// len(agents) for unknown names so they sort last.
func agentRank(agents []string, agent string) int {
	for i, a := range agents {
		if a == agent {
			return i
		}
	}
	return len(agents)
}
