// Package deliver formats batches of comments into a single payload and
// routes it to a resolved target.
package deliver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/rs/zerolog"

	"github.com/critic-sh/critic/internal/core/comment"
	"github.com/critic-sh/critic/internal/core/target"
	"github.com/critic-sh/critic/pkg/executil"
)

// TypeTmuxPane is the terminal-paste target used by the CLI path. It is not
// part of the HTTP target listing.
const TypeTmuxPane = target.Type("tmux_pane")

// TmuxPane addresses a multiplexer pane in "session:window.pane" form.
type TmuxPane struct {
	Pane string
}

func (p TmuxPane) TargetID() string        { return p.Pane }
func (p TmuxPane) TargetType() target.Type { return TypeTmuxPane }

var _ target.Target = TmuxPane{}

// payloadSeparator sits between comments in the delivered text.
const payloadSeparator = "\n\n---\n\n"

// Result reports what a delivery did. Payload is always the formatted text;
// Sent is true when comment status was advanced.
type Result struct {
	Payload string
	Sent    bool
}

// Orchestrator owns the three delivery paths. All of them share one
// formatter so payload shape has a single implementation.
type Orchestrator struct {
	store comment.Store
	exec  executil.Executor
	log   zerolog.Logger
}

func NewOrchestrator(store comment.Store, exec executil.Executor, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store: store,
		exec:  exec,
		log:   log.With().Str("cmp", "deliver").Logger(),
	}
}

// Deliver routes the formatted batch to the target:
//   - clipboard: returns the payload, status untouched. The caller advances
//     status after it has actually copied the text.
//   - mcp_client: marks the comments sent so the next client poll picks
//     them up. Delivery is pull-based, nothing is pushed.
//   - tmux_pane: pastes the payload into the pane and submits it, then
//     marks the comments sent.
func (o *Orchestrator) Deliver(ctx context.Context, tgt target.Target, comments []comment.Comment) (Result, error) {
	if len(comments) == 0 {
		return Result{}, errors.New("nothing to deliver")
	}

	payload := FormatPayload(comments)
	ids := make([]string, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
	}

	switch t := tgt.(type) {
	case target.Clipboard:
		return Result{Payload: payload}, nil

	case target.McpClient:
		if _, err := o.store.MarkSent(ctx, ids); err != nil {
			return Result{}, fmt.Errorf("marking comments sent: %w", err)
		}
		o.log.Info().Str("client", t.Name).Int("comments", len(ids)).Msg("comments staged for client poll")
		return Result{Payload: payload, Sent: true}, nil

	case TmuxPane:
		if err := o.pasteToPane(ctx, t.Pane, payload); err != nil {
			return Result{}, err
		}
		if _, err := o.store.MarkSent(ctx, ids); err != nil {
			return Result{}, fmt.Errorf("marking comments sent: %w", err)
		}
		o.log.Info().Str("pane", t.Pane).Int("comments", len(ids)).Msg("comments pasted into pane")
		return Result{Payload: payload, Sent: true}, nil

	default:
		return Result{}, fmt.Errorf("unsupported target type %q", tgt.TargetType())
	}
}

// pasteToPane writes the payload literally, then a separate Enter keypress
// to submit it. The -l flag keeps key-name expansion off.
func (o *Orchestrator) pasteToPane(ctx context.Context, pane, payload string) error {
	if _, err := o.exec.Run(ctx, "tmux", "send-keys", "-t", pane, "-l", payload); err != nil {
		return fmt.Errorf("pasting into pane %s: %w", pane, err)
	}
	if _, err := o.exec.Run(ctx, "tmux", "send-keys", "-t", pane, "Enter"); err != nil {
		return fmt.Errorf("submitting pane %s: %w", pane, err)
	}
	return nil
}

// CopyToClipboard puts text on the system clipboard. Used by the CLI after a
// clipboard delivery resolves.
func CopyToClipboard(text string) error {
	return clipboard.WriteAll(text)
}

// FormatComment renders one comment as its location line followed by the
// content. Session-wide comments keep their "[general]" path untouched.
func FormatComment(c comment.Comment) string {
	return formatLocation(c) + "\n" + c.Content
}

// FormatPayload joins formatted comments with a visible separator.
func FormatPayload(comments []comment.Comment) string {
	parts := make([]string, len(comments))
	for i, c := range comments {
		parts[i] = FormatComment(c)
	}
	return strings.Join(parts, payloadSeparator)
}

func formatLocation(c comment.Comment) string {
	if c.LineStart == nil {
		return c.FilePath
	}
	if c.LineEnd != nil && *c.LineEnd != *c.LineStart {
		return fmt.Sprintf("%s:L%d-L%d", c.FilePath, *c.LineStart, *c.LineEnd)
	}
	return fmt.Sprintf("%s:L%d", c.FilePath, *c.LineStart)
}
