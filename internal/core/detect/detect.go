// Package detect enumerates tmux topology and identifies coding agents
// running inside windows.
package detect

import (
	"context"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/critic-sh/critic/pkg/executil"
)

// Window is a point-in-time snapshot of one tmux window.
type Window struct {
	SessionName string `json:"sessionName"`
	WindowIndex int    `json:"windowIndex"`
	WindowName  string `json:"windowName"`
	PanePath    string `json:"paneCurrentPath"`
	PaneCommand string `json:"paneCurrentCommand"`
	PanePID     int    `json:"-"`
	Agent       string `json:"detectedAgent,omitempty"`
}

// Session is a point-in-time snapshot of one tmux session. DetectedProcess
// and MultipleAgents are recomputed whenever windows are filtered to a
// repository path.
type Session struct {
	Name            string   `json:"name"`
	WindowCount     int      `json:"windowCount"`
	Attached        bool     `json:"attached"`
	WorkingDir      string   `json:"workingDir"`
	Windows         []Window `json:"windows"`
	DetectedProcess string   `json:"detectedProcess,omitempty"`
	MultipleAgents  bool     `json:"multipleAgents"`
}

// Snapshot is the result of one enumeration pass. Nothing is cached between
// calls; staleness is bounded only by the caller's poll interval.
type Snapshot struct {
	Available bool
	Sessions  []Session
}

const enumTimeout = 2 * time.Second

// Detector inspects the local tmux server for sessions running coding agents.
type Detector struct {
	exec      executil.Executor
	inspector ProcessInspector
	agents    []string
	log       zerolog.Logger

	availableOnce sync.Once
	available     bool
}

// New creates a detector. agents overrides the priority list (DefaultAgents
// if nil).
func New(exec executil.Executor, inspector ProcessInspector, agents []string, log zerolog.Logger) *Detector {
	if len(agents) == 0 {
		agents = DefaultAgents
	}
	return &Detector{
		exec:      exec,
		inspector: inspector,
		agents:    agents,
		log:       log,
	}
}

// Available returns true if tmux is installed and accessible.
func (d *Detector) Available() bool {
	d.availableOnce.Do(func() {
		_, err := exec.LookPath("tmux")
		d.available = err == nil
	})
	return d.available
}

// ListSessions enumerates the live tmux topology and runs agent detection on
// every window. It never raises for an unreachable multiplexer — the snapshot
// reports unavailability and callers fall back to clipboard-only.
func (d *Detector) ListSessions(ctx context.Context) Snapshot {
	if !d.Available() {
		return Snapshot{Available: false}
	}

	sessions, err := d.listSessions(ctx)
	if err != nil {
		d.log.Debug().Err(err).Msg("tmux list-sessions failed")
		return Snapshot{Available: false}
	}

	windows, err := d.listWindows(ctx)
	if err != nil {
		d.log.Debug().Err(err).Msg("tmux list-panes failed")
		return Snapshot{Available: false}
	}

	bySession := make(map[string][]Window)
	for _, w := range windows {
		bySession[w.SessionName] = append(bySession[w.SessionName], w)
	}

	result := make([]Session, 0, len(sessions))
	for _, sess := range sessions {
		sess.Windows = bySession[sess.Name]
		sort.Slice(sess.Windows, func(i, j int) bool {
			return sess.Windows[i].WindowIndex < sess.Windows[j].WindowIndex
		})
		recompute(&sess, d.agents)
		result = append(result, sess)
	}

	return Snapshot{Available: true, Sessions: result}
}

// ListForRepo enumerates sessions and narrows them to the given repository
// path, recomputing per-session agent fields from the matching windows only.
func (d *Detector) ListForRepo(ctx context.Context, repoPath string) Snapshot {
	snap := d.ListSessions(ctx)
	if !snap.Available {
		return snap
	}
	snap.Sessions = FilterByRepo(snap.Sessions, repoPath, d.agents)
	return snap
}

func (d *Detector) listSessions(ctx context.Context) ([]Session, error) {
	ctx, cancel := context.WithTimeout(ctx, enumTimeout)
	defer cancel()

	out, err := d.exec.Run(ctx, "tmux", "list-sessions", "-F",
		"#{session_name}\t#{session_windows}\t#{session_attached}\t#{session_path}")
	if err != nil {
		return nil, err
	}

	var sessions []Session
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 4)
		if len(parts) < 4 {
			continue
		}
		windowCount, _ := strconv.Atoi(parts[1])
		attached, _ := strconv.Atoi(parts[2])
		sessions = append(sessions, Session{
			Name:        parts[0],
			WindowCount: windowCount,
			Attached:    attached > 0,
			WorkingDir:  parts[3],
		})
	}
	return sessions, nil
}

// listWindows enumerates panes across all sessions and collapses them into
// windows, running agent detection per pane. Windows are deduplicated by
// index; a probe that found an agent always wins over one that did not, so
// detection is monotonic toward "found" within one pass.
func (d *Detector) listWindows(ctx context.Context) ([]Window, error) {
	enumCtx, cancel := context.WithTimeout(ctx, enumTimeout)
	defer cancel()

	out, err := d.exec.Run(enumCtx, "tmux", "list-panes", "-a", "-F",
		"#{session_name}\t#{window_index}\t#{window_name}\t#{pane_current_path}\t#{pane_current_command}\t#{pane_pid}")
	if err != nil {
		return nil, err
	}

	type key struct {
		session string
		index   int
	}
	seen := make(map[key]int) // key -> index into windows
	var windows []Window

	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 6)
		if len(parts) < 6 {
			continue
		}

		index, _ := strconv.Atoi(parts[1])
		pid, _ := strconv.Atoi(parts[5])
		w := Window{
			SessionName: parts[0],
			WindowIndex: index,
			WindowName:  parts[2],
			PanePath:    parts[3],
			PaneCommand: parts[4],
			PanePID:     pid,
		}
		w.Agent = d.detectAgent(ctx, w.PaneCommand, w.PanePID)

		k := key{session: w.SessionName, index: w.WindowIndex}
		if at, ok := seen[k]; ok {
			// Same window probed through another pane: a non-null agent
			// result overwrites path/command fields, never regresses to null.
			if windows[at].Agent == "" && w.Agent != "" {
				windows[at] = w
			}
			continue
		}
		seen[k] = len(windows)
		windows = append(windows, w)
	}
	return windows, nil
}

// detectAgent identifies a coding agent for one pane: cheap substring match on
// the foreground command first, then the pane's children, then grandchildren,
// stopping at the first match at the shallowest depth.
func (d *Detector) detectAgent(ctx context.Context, command string, pid int) string {
	if agent := matchAgent(d.agents, command); agent != "" {
		return agent
	}
	if pid <= 0 || d.inspector == nil {
		return ""
	}

	children, err := d.inspector.Children(ctx, pid)
	if err != nil {
		d.log.Debug().Err(err).Int("pid", pid).Msg("process children probe failed")
		return ""
	}

	var grandchildren []int
	for _, child := range children {
		cmd, err := d.inspector.Command(ctx, child)
		if err == nil {
			if agent := matchAgent(d.agents, cmd); agent != "" {
				return agent
			}
		}
		gc, err := d.inspector.Children(ctx, child)
		if err == nil {
			grandchildren = append(grandchildren, gc...)
		}
	}
	for _, gc := range grandchildren {
		cmd, err := d.inspector.Command(ctx, gc)
		if err != nil {
			continue
		}
		if agent := matchAgent(d.agents, cmd); agent != "" {
			return agent
		}
	}
	return ""
}

// FilterByRepo narrows sessions to those matching the repository path. A
// window matches if its working directory equals the path or is a strict
// subdirectory; a session matches if any window matches or the session-level
// working directory matches. Matching sessions keep only their matching
// windows, and DetectedProcess/MultipleAgents are recomputed from those.
func FilterByRepo(sessions []Session, repoPath string, agents []string) []Session {
	if len(agents) == 0 {
		agents = DefaultAgents
	}
	repoPath = strings.TrimSuffix(repoPath, "/")
	if repoPath == "" {
		return sessions
	}

	var result []Session
	for _, sess := range sessions {
		var matching []Window
		for _, w := range sess.Windows {
			if pathMatches(w.PanePath, repoPath) {
				matching = append(matching, w)
			}
		}
		if len(matching) == 0 && !pathMatches(sess.WorkingDir, repoPath) {
			continue
		}

		// A session kept only by its session-level working directory carries
		// no windows and therefore no detected agent.
		sess.Windows = matching
		recompute(&sess, agents)
		result = append(result, sess)
	}
	return result
}

func pathMatches(path, repoPath string) bool {
	path = strings.TrimSuffix(path, "/")
	return path == repoPath || strings.HasPrefix(path, repoPath+"/")
}

// recompute derives DetectedProcess and MultipleAgents from the session's
// current window set: agent-bearing windows sorted by the priority list, the
// first taken as the detected process.
func recompute(sess *Session, agents []string) {
	var detected []string
	for _, w := range sess.Windows {
		if w.Agent != "" {
			detected = append(detected, w.Agent)
		}
	}

	sess.MultipleAgents = len(detected) > 1
	if len(detected) == 0 {
		sess.DetectedProcess = ""
		return
	}

	sort.Slice(detected, func(i, j int) bool {
		return agentRank(agents, detected[i]) < agentRank(agents, detected[j])
	})
	sess.DetectedProcess = detected[0]
}
