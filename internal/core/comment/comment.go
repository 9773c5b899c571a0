// Package comment defines review comments, their delivery lifecycle, and the
// persistence contract for both.
package comment

import (
	"fmt"
	"strings"
	"time"
)

// GeneralFile marks a session-wide comment that is not tied to a file or line.
const GeneralFile = "[general]"

// Status is the delivery state of a comment.
type Status string

// Comment lifecycle states. Transitions only move forward:
// queued -> staged -> sent | cancelled. A comment may additionally be marked
// resolved by an external agent, out of band from the reviewer UI.
const (
	StatusQueued    Status = "queued"
	StatusStaged    Status = "staged"
	StatusSent      Status = "sent"
	StatusCancelled Status = "cancelled"
	StatusResolved  Status = "resolved"
)

// Statuses lists every defined status in lifecycle order.
var Statuses = []Status{StatusQueued, StatusStaged, StatusSent, StatusCancelled, StatusResolved}

// Valid returns true if s is a defined status.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusStaged, StatusSent, StatusCancelled, StatusResolved:
		return true
	}
	return false
}

// rank orders statuses along the forward-only state machine. resolved sits
// past sent so that an agent resolving a delivered comment is a forward move.
var rank = map[Status]int{
	StatusQueued:    0,
	StatusStaged:    1,
	StatusSent:      2,
	StatusCancelled: 2,
	StatusResolved:  3,
}

// CanTransition reports whether a comment may move from one status to another.
// Same-status writes are allowed (idempotent bulk operations depend on it);
// backward moves never are.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	// sent and cancelled share a rank: neither sibling terminal can reach the other.
	return rank[to] > rank[from]
}

// Side indicates which side of a diff a comment refers to.
type Side string

// Diff sides.
const (
	SideOld  Side = "old"
	SideNew  Side = "new"
	SideBoth Side = "both"
)

// Comment is inline (or session-wide) reviewer feedback on a diff.
type Comment struct {
	ID         string     `json:"id"`
	SessionID  string     `json:"sessionId"`
	FilePath   string     `json:"filePath"` // GeneralFile for session-wide comments
	LineStart  *int       `json:"lineStart,omitempty"`
	LineEnd    *int       `json:"lineEnd,omitempty"`
	Side       Side       `json:"side,omitempty"`
	Content    string     `json:"content"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	SentAt     *time.Time `json:"sentAt,omitempty"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
	ResolvedBy string     `json:"resolvedBy,omitempty"`
}

// Session is a review session scoped to one (repo, branch) pair. Sessions are
// created lazily on first visit; comments belong to exactly one session.
type Session struct {
	ID                 string    `json:"id"`
	RepoID             string    `json:"repoId"`
	Branch             string    `json:"branch"`
	BaseBranchOverride string    `json:"baseBranchOverride,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

// CreateInput carries the reviewer-supplied fields for a new comment.
type CreateInput struct {
	SessionID string
	FilePath  string
	LineStart *int
	LineEnd   *int
	Side      Side
	Content   string
}

// Validate checks the create invariants: non-empty content and, when both
// line bounds are present, lineEnd >= lineStart.
func (in CreateInput) Validate() error {
	if strings.TrimSpace(in.Content) == "" {
		return &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if in.SessionID == "" {
		return &ValidationError{Field: "sessionId", Reason: "is required"}
	}
	if in.LineStart != nil && *in.LineStart < 1 {
		return &ValidationError{Field: "lineStart", Reason: "must be >= 1"}
	}
	if in.LineEnd != nil {
		if in.LineStart == nil {
			return &ValidationError{Field: "lineEnd", Reason: "requires lineStart"}
		}
		if *in.LineEnd < *in.LineStart {
			return &ValidationError{Field: "lineEnd", Reason: fmt.Sprintf("must be >= lineStart (%d)", *in.LineStart)}
		}
	}
	switch in.Side {
	case "", SideOld, SideNew, SideBoth:
	default:
		return &ValidationError{Field: "side", Reason: `must be one of "old", "new", "both"`}
	}
	return nil
}
