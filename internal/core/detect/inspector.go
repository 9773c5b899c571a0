package detect

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/critic-sh/critic/pkg/executil"
)

// ProcessInspector exposes the slice of the process table the agent matcher
// needs, so the priority-matching algorithm is unit-testable against a fake.
type ProcessInspector interface {
	// Children returns the direct child PIDs of a process.
	Children(ctx context.Context, pid int) ([]int, error)
	// Command returns the command name of a process.
	Command(ctx context.Context, pid int) (string, error)
}

// probeTimeout bounds each external process-table call so one hung probe
// cannot stall enumeration of the remaining panes.
const probeTimeout = 2 * time.Second

// PSInspector implements ProcessInspector by shelling out to ps.
type PSInspector struct {
	exec executil.Executor
}

// NewPSInspector creates a ps-backed inspector.
func NewPSInspector(exec executil.Executor) *PSInspector {
	return &PSInspector{exec: exec}
}

// Children returns the direct child PIDs of a process.
func (p *PSInspector) Children(ctx context.Context, pid int) ([]int, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := p.exec.Run(ctx, "ps", "-o", "pid=", "--ppid", strconv.Itoa(pid))
	if err != nil {
		// ps exits non-zero when a process has no children; treat as empty.
		return nil, nil
	}

	var pids []int
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		child, err := strconv.Atoi(line)
		if err != nil {
			continue
		}
		pids = append(pids, child)
	}
	return pids, nil
}

// Command returns the command name of a process.
func (p *PSInspector) Command(ctx context.Context, pid int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := p.exec.Run(ctx, "ps", "-o", "comm=", "-p", strconv.Itoa(pid))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

var _ ProcessInspector = (*PSInspector)(nil)
