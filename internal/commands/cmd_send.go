package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/critic-sh/critic/internal/core/comment"
	"github.com/critic-sh/critic/internal/core/deliver"
	"github.com/critic-sh/critic/internal/core/target"
)

type SendCmd struct {
	flags *Flags
	app   *App

	// flags
	sessionID string
	ids       []string
	targetID  string
	pane      string
	repoPath  string
}

// NewSendCmd creates a new send command
func NewSendCmd(flags *Flags, app *App) *SendCmd {
	return &SendCmd{flags: flags, app: app}
}

// Register adds the send command to the application
func (cmd *SendCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "send",
		Usage:     "Deliver staged comments to a target",
		UsageText: "critic send --session id [--ids a,b] [--target id | --pane session:win.pane] [--repo path]",
		Description: `Formats the selected comments into one payload and delivers it.

Without --ids, every staged comment in the session is sent. Without an
explicit --target or --pane, the target is auto-selected when agent
detection is unambiguous; ambiguity aborts rather than guessing.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "session",
				Usage:       "review session id",
				Required:    true,
				Destination: &cmd.sessionID,
			},
			&cli.StringSliceFlag{
				Name:        "ids",
				Usage:       "comment ids to send (default: all staged)",
				Destination: &cmd.ids,
			},
			&cli.StringFlag{
				Name:        "target",
				Usage:       "target id (mcp client id or \"clipboard\")",
				Destination: &cmd.targetID,
			},
			&cli.StringFlag{
				Name:        "pane",
				Usage:       "tmux pane to paste into (session:window.pane)",
				Destination: &cmd.pane,
			},
			&cli.StringFlag{
				Name:        "repo",
				Usage:       "repository path for target auto-selection",
				Destination: &cmd.repoPath,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *SendCmd) run(ctx context.Context, c *cli.Command) error {
	comments, err := cmd.selectComments(ctx)
	if err != nil {
		return err
	}
	if len(comments) == 0 {
		return fmt.Errorf("no staged comments to send in session %s", cmd.sessionID)
	}

	tgt, err := cmd.resolveTarget(ctx)
	if err != nil {
		return err
	}

	res, err := cmd.app.Deliver.Deliver(ctx, tgt, comments)
	if err != nil {
		return fmt.Errorf("deliver: %w", err)
	}

	out := c.Root().Writer
	if tgt.TargetType() == target.TypeClipboard {
		// The orchestrator hands back the payload; copying is what confirms
		// delivery, so status is advanced only after it succeeds.
		if err := deliver.CopyToClipboard(res.Payload); err != nil {
			return fmt.Errorf("copy to clipboard: %w", err)
		}
		ids := make([]string, len(comments))
		for i, cm := range comments {
			ids[i] = cm.ID
		}
		if _, err := cmd.app.Store.MarkSent(ctx, ids); err != nil {
			return fmt.Errorf("mark sent: %w", err)
		}
		fmt.Fprintf(out, "Copied %d comment(s) to clipboard\n", len(comments))
		return nil
	}

	fmt.Fprintf(out, "Delivered %d comment(s) to %s %s\n", len(comments), tgt.TargetType(), tgt.TargetID())
	return nil
}

func (cmd *SendCmd) selectComments(ctx context.Context) ([]comment.Comment, error) {
	if len(cmd.ids) > 0 {
		out := make([]comment.Comment, 0, len(cmd.ids))
		for _, id := range cmd.ids {
			c, err := cmd.app.Store.Get(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("comment %s: %w", id, err)
			}
			out = append(out, c)
		}
		return out, nil
	}

	all, err := cmd.app.Store.ListBySession(ctx, cmd.sessionID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	var staged []comment.Comment
	for _, c := range all {
		if c.Status == comment.StatusStaged {
			staged = append(staged, c)
		}
	}
	return staged, nil
}

func (cmd *SendCmd) resolveTarget(ctx context.Context) (target.Target, error) {
	if cmd.pane != "" {
		return deliver.TmuxPane{Pane: cmd.pane}, nil
	}

	targets, err := cmd.app.Resolver.List(ctx)
	if err != nil && len(targets) == 0 {
		return nil, fmt.Errorf("resolve targets: %w", err)
	}

	if cmd.targetID != "" {
		for _, t := range targets {
			if t.TargetID() == cmd.targetID {
				return t, nil
			}
		}
		return nil, fmt.Errorf("unknown target %q", cmd.targetID)
	}

	snap := cmd.app.Detector.ListForRepo(ctx, cmd.repoPath)
	selected := target.AutoSelect(targets, snap.Sessions)
	if selected == nil {
		names := make([]string, 0, len(snap.Sessions))
		for _, s := range snap.Sessions {
			if s.DetectedProcess != "" {
				names = append(names, s.Name)
			}
		}
		return nil, fmt.Errorf("multiple agent sessions detected (%s); pick one with --target or --pane", strings.Join(names, ", "))
	}
	return selected, nil
}
