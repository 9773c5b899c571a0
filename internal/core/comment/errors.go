package comment

import (
	"errors"
	"fmt"
)

// Sentinel errors for comment operations.
var (
	// ErrNotFound indicates the referenced comment or session does not exist.
	ErrNotFound = errors.New("comment not found")
	// ErrSessionNotFound indicates the referenced review session does not exist.
	ErrSessionNotFound = errors.New("review session not found")
)

// ValidationError indicates reviewer input that fails a comment invariant.
// It is recoverable locally and surfaced as a 400 by the web layer.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransitionError indicates a status write that would move backward along the
// lifecycle.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition comment from %q to %q", e.From, e.To)
}
