package executil

import (
	"context"
	"fmt"
	"sync"
)

// RecordedCommand captures a command that was executed.
type RecordedCommand struct {
	Cmd  string
	Args []string
}

// RecordingExecutor captures commands for testing. Outputs are keyed by
// "cmd subcommand" (e.g. "tmux list-panes", "ps"); set Respond for full
// control over argument-dependent output.
type RecordingExecutor struct {
	mu       sync.Mutex
	Commands []RecordedCommand

	Outputs map[string][]byte
	Errors  map[string]error

	// Respond, when set, overrides Outputs/Errors entirely.
	Respond func(cmd string, args []string) ([]byte, error)
}

// Run records the command and returns configured output/error.
func (e *RecordingExecutor) Run(_ context.Context, cmd string, args ...string) ([]byte, error) {
	e.mu.Lock()
	e.Commands = append(e.Commands, RecordedCommand{Cmd: cmd, Args: args})
	respond := e.Respond
	e.mu.Unlock()

	if respond != nil {
		return respond(cmd, args)
	}

	key := cmd
	if len(args) > 0 {
		key = fmt.Sprintf("%s %s", cmd, args[0])
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err, ok := e.Errors[key]; ok {
		return nil, err
	}
	if out, ok := e.Outputs[key]; ok {
		return out, nil
	}
	if err, ok := e.Errors[cmd]; ok {
		return nil, err
	}
	return e.Outputs[cmd], nil
}

// Reset clears recorded commands.
func (e *RecordingExecutor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Commands = nil
}

var _ Executor = (*RecordingExecutor)(nil)
