package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/critic-sh/critic/pkg/iojson"
)

type SessionsCmd struct {
	flags *Flags
	app   *App

	// flags
	jsonOutput bool
	repoPath   string
}

// NewSessionsCmd creates a new sessions command
func NewSessionsCmd(flags *Flags, app *App) *SessionsCmd {
	return &SessionsCmd{flags: flags, app: app}
}

// Register adds the sessions command to the application
func (cmd *SessionsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "sessions",
		Usage:     "List tmux sessions and detected coding agents",
		UsageText: "critic sessions [--json] [--repo path]",
		Description: `Enumerates live tmux sessions and the coding agent detected in each.
With --repo, only sessions working in that repository are shown.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON lines",
				Destination: &cmd.jsonOutput,
			},
			&cli.StringFlag{
				Name:        "repo",
				Usage:       "narrow sessions to a repository path",
				Destination: &cmd.repoPath,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *SessionsCmd) run(ctx context.Context, c *cli.Command) error {
	snap := cmd.app.Detector.ListSessions(ctx)
	if cmd.repoPath != "" {
		snap = cmd.app.Detector.ListForRepo(ctx, cmd.repoPath)
	}

	out := c.Root().Writer

	if !snap.Available {
		fmt.Fprintln(c.Root().ErrWriter, "tmux is not available")
		return nil
	}

	if cmd.jsonOutput {
		for _, s := range snap.Sessions {
			if err := iojson.WriteLine(out, s); err != nil {
				return fmt.Errorf("encode session: %w", err)
			}
		}
		return nil
	}

	if len(snap.Sessions) == 0 {
		fmt.Fprintln(c.Root().ErrWriter, "No sessions found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tWINDOWS\tDIR\tAGENT\tAMBIGUOUS")
	for _, s := range snap.Sessions {
		ambiguous := ""
		if s.MultipleAgents {
			ambiguous = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", s.Name, s.WindowCount, s.WorkingDir, s.DetectedProcess, ambiguous)
	}
	return w.Flush()
}
