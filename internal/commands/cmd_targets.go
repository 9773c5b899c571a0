package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/critic-sh/critic/internal/core/target"
	"github.com/critic-sh/critic/pkg/iojson"
)

type TargetsCmd struct {
	flags *Flags
	app   *App

	// flags
	jsonOutput bool
	repoPath   string
}

// NewTargetsCmd creates a new targets command
func NewTargetsCmd(flags *Flags, app *App) *TargetsCmd {
	return &TargetsCmd{flags: flags, app: app}
}

// Register adds the targets command to the application
func (cmd *TargetsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "targets",
		Usage:     "List delivery targets",
		UsageText: "critic targets [--json] [--repo path]",
		Description: `Displays connected remote clients and the clipboard fallback, ranked the
way the send path resolves them. With --repo, the auto-selected default is
marked when agent detection is unambiguous.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON lines",
				Destination: &cmd.jsonOutput,
			},
			&cli.StringFlag{
				Name:        "repo",
				Usage:       "repository path for agent-based auto-selection",
				Destination: &cmd.repoPath,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *TargetsCmd) run(ctx context.Context, c *cli.Command) error {
	targets, err := cmd.app.Resolver.List(ctx)
	if err != nil {
		fmt.Fprintf(c.Root().ErrWriter, "target resolution degraded: %v\n", err)
	}

	var selected target.Target
	if cmd.repoPath != "" {
		snap := cmd.app.Detector.ListForRepo(ctx, cmd.repoPath)
		if snap.Available {
			selected = target.AutoSelect(targets, snap.Sessions)
		}
	}

	out := c.Root().Writer

	if cmd.jsonOutput {
		for _, t := range targets {
			if err := iojson.WriteLine(out, t); err != nil {
				return fmt.Errorf("encode target: %w", err)
			}
		}
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTYPE\tNAME\tDEFAULT")
	for _, t := range targets {
		name := ""
		if mc, ok := t.(target.McpClient); ok {
			name = mc.Name
		}
		def := ""
		if selected != nil && selected.TargetID() == t.TargetID() {
			def = "*"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.TargetID(), t.TargetType(), name, def)
	}
	return w.Flush()
}
