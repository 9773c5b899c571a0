package comment

import "context"

// UpdateInput carries the mutable fields for Update. Nil fields are left
// unchanged; an input with neither field set is a no-op.
type UpdateInput struct {
	Content *string
	Status  *Status
}

// Store defines persistence operations for comments and review sessions.
//
// Concurrent writes to the same comment are last-write-wins; bulk operations
// are per-row independent and report the matched count as ground truth.
type Store interface {
	// EnsureSession returns the session for (repoID, branch), creating it on
	// first visit.
	EnsureSession(ctx context.Context, repoID, branch string) (Session, error)

	// GetSession returns a session by ID. Returns ErrSessionNotFound if missing.
	GetSession(ctx context.Context, id string) (Session, error)

	// SetBaseBranchOverride updates the session's base branch override.
	SetBaseBranchOverride(ctx context.Context, sessionID, base string) error

	// Create validates input and inserts a new comment with status queued.
	Create(ctx context.Context, in CreateInput) (Comment, error)

	// Get returns a comment by ID. Returns ErrNotFound if missing.
	Get(ctx context.Context, id string) (Comment, error)

	// ListBySession returns all comments for a session, oldest first.
	ListBySession(ctx context.Context, sessionID string) ([]Comment, error)

	// Update edits content and/or status. Returns ErrNotFound for unknown IDs
	// and a TransitionError for backward status moves.
	Update(ctx context.Context, id string, in UpdateInput) (Comment, error)

	// Delete removes a comment. Idempotent; reports whether a row was removed.
	// Comments already sent are not deletable.
	Delete(ctx context.Context, id string) (bool, error)

	// BulkSetStatus sets status for every matched ID; unknown IDs are skipped.
	// The returned count reflects only matched rows.
	BulkSetStatus(ctx context.Context, ids []string, status Status) (int, error)

	// MarkSent is BulkSetStatus(sent) plus a sentAt stamp.
	MarkSent(ctx context.Context, ids []string) (int, error)

	// MarkResolved records an external agent resolving a comment.
	MarkResolved(ctx context.Context, id, resolvedBy string) error

	// CountsByStatus returns a map with every defined status key present,
	// zero-filled, never sparse.
	CountsByStatus(ctx context.Context, sessionID string) (map[Status]int, error)
}
