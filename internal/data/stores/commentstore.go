package stores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/critic-sh/critic/internal/core/comment"
	"github.com/critic-sh/critic/internal/data/db"
)

// CommentStore implements comment.Store using SQLite.
type CommentStore struct {
	db *db.DB
}

var _ comment.Store = (*CommentStore)(nil)

// NewCommentStore creates a new SQLite-backed comment store.
func NewCommentStore(db *db.DB) *CommentStore {
	return &CommentStore{db: db}
}

const commentColumns = `id, session_id, file_path, line_start, line_end, side, content, status, created_at, sent_at, resolved_at, resolved_by`

// EnsureSession returns the session for (repoID, branch), creating it lazily
// on first visit.
func (s *CommentStore) EnsureSession(ctx context.Context, repoID, branch string) (comment.Session, error) {
	sess, err := s.getSessionByRepoBranch(ctx, repoID, branch)
	if err == nil {
		return sess, nil
	}
	if !IsNotFoundError(err) {
		return comment.Session{}, err
	}

	id := uuid.NewString()
	now := time.Now()
	_, err = s.db.Conn().ExecContext(ctx,
		`INSERT INTO review_sessions (id, repo_id, branch, created_at) VALUES (?, ?, ?, ?)`,
		id, repoID, branch, now.UnixNano(),
	)
	if IsConstraintError(err) {
		// Lost a race with a concurrent first visit; the winner's row is fine.
		return s.getSessionByRepoBranch(ctx, repoID, branch)
	}
	if err != nil {
		return comment.Session{}, fmt.Errorf("create review session: %w", err)
	}

	return comment.Session{ID: id, RepoID: repoID, Branch: branch, CreatedAt: now}, nil
}

// GetSession returns a session by ID.
func (s *CommentStore) GetSession(ctx context.Context, id string) (comment.Session, error) {
	return s.scanSession(s.db.Conn().QueryRowContext(ctx,
		`SELECT id, repo_id, branch, base_branch_override, created_at FROM review_sessions WHERE id = ?`, id))
}

// SetBaseBranchOverride updates the session's base branch override.
func (s *CommentStore) SetBaseBranchOverride(ctx context.Context, sessionID, base string) error {
	res, err := s.db.Conn().ExecContext(ctx,
		`UPDATE review_sessions SET base_branch_override = ? WHERE id = ?`, base, sessionID)
	if err != nil {
		return fmt.Errorf("set base branch override: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return comment.ErrSessionNotFound
	}
	return nil
}

// Create validates input and inserts a new comment with status queued.
func (s *CommentStore) Create(ctx context.Context, in comment.CreateInput) (comment.Comment, error) {
	if err := in.Validate(); err != nil {
		return comment.Comment{}, err
	}

	filePath := in.FilePath
	if filePath == "" {
		filePath = comment.GeneralFile
	}

	c := comment.Comment{
		ID:        uuid.NewString(),
		SessionID: in.SessionID,
		FilePath:  filePath,
		LineStart: in.LineStart,
		LineEnd:   in.LineEnd,
		Side:      in.Side,
		Content:   strings.TrimSpace(in.Content),
		Status:    comment.StatusQueued,
		CreatedAt: time.Now(),
	}

	_, err := s.db.Conn().ExecContext(ctx,
		`INSERT INTO comments (id, session_id, file_path, line_start, line_end, side, content, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.SessionID, c.FilePath, toNullInt(c.LineStart), toNullInt(c.LineEnd),
		string(c.Side), c.Content, string(c.Status), c.CreatedAt.UnixNano(),
	)
	if err != nil {
		return comment.Comment{}, fmt.Errorf("create comment: %w", err)
	}

	return c, nil
}

// Get returns a comment by ID.
func (s *CommentStore) Get(ctx context.Context, id string) (comment.Comment, error) {
	row := s.db.Conn().QueryRowContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE id = ?`, id)
	c, err := scanComment(row)
	if IsNotFoundError(err) {
		return comment.Comment{}, comment.ErrNotFound
	}
	if err != nil {
		return comment.Comment{}, fmt.Errorf("get comment: %w", err)
	}
	return c, nil
}

// ListBySession returns all comments for a session, oldest first.
func (s *CommentStore) ListBySession(ctx context.Context, sessionID string) ([]comment.Comment, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE session_id = ? ORDER BY created_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	comments := make([]comment.Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// Update edits content and/or status. Status writes must move forward along
// the lifecycle; last write wins between concurrent updates.
func (s *CommentStore) Update(ctx context.Context, id string, in comment.UpdateInput) (comment.Comment, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return comment.Comment{}, err
	}
	if in.Content == nil && in.Status == nil {
		return current, nil
	}

	if in.Content != nil {
		if current.Status == comment.StatusSent {
			return comment.Comment{}, &comment.ValidationError{Field: "content", Reason: "cannot edit a sent comment"}
		}
		if strings.TrimSpace(*in.Content) == "" {
			return comment.Comment{}, &comment.ValidationError{Field: "content", Reason: "must not be empty"}
		}
		current.Content = strings.TrimSpace(*in.Content)
	}
	if in.Status != nil {
		if !comment.CanTransition(current.Status, *in.Status) {
			return comment.Comment{}, &comment.TransitionError{From: current.Status, To: *in.Status}
		}
		current.Status = *in.Status
		if *in.Status == comment.StatusSent && current.SentAt == nil {
			now := time.Now()
			current.SentAt = &now
		}
	}

	_, err = s.db.Conn().ExecContext(ctx,
		`UPDATE comments SET content = ?, status = ?, sent_at = ? WHERE id = ?`,
		current.Content, string(current.Status), toNullTime(current.SentAt), id)
	if err != nil {
		return comment.Comment{}, fmt.Errorf("update comment: %w", err)
	}
	return current, nil
}

// Delete removes a comment. Idempotent; sent comments are not deletable.
func (s *CommentStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.Conn().ExecContext(ctx,
		`DELETE FROM comments WHERE id = ? AND status != ?`, id, string(comment.StatusSent))
	if err != nil {
		return false, fmt.Errorf("delete comment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete comment rows affected: %w", err)
	}
	return n > 0, nil
}

// BulkSetStatus sets status for every matched ID. Unknown IDs and rows that
// cannot legally transition are skipped; each row is independent and partial
// progress is not rolled back.
func (s *CommentStore) BulkSetStatus(ctx context.Context, ids []string, status comment.Status) (int, error) {
	return s.bulkSetStatus(ctx, ids, status, false)
}

// MarkSent is BulkSetStatus(sent) plus a sentAt stamp.
func (s *CommentStore) MarkSent(ctx context.Context, ids []string) (int, error) {
	return s.bulkSetStatus(ctx, ids, comment.StatusSent, true)
}

func (s *CommentStore) bulkSetStatus(ctx context.Context, ids []string, status comment.Status, stampSent bool) (int, error) {
	if !status.Valid() {
		return 0, &comment.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}

	count := 0
	for _, id := range ids {
		current, err := s.Get(ctx, id)
		if errors.Is(err, comment.ErrNotFound) {
			continue
		}
		if err != nil {
			return count, err
		}
		if !comment.CanTransition(current.Status, status) {
			continue
		}

		args := []any{string(status)}
		query := `UPDATE comments SET status = ?`
		if stampSent && current.SentAt == nil {
			query += `, sent_at = ?`
			args = append(args, time.Now().UnixNano())
		}
		query += ` WHERE id = ?`
		args = append(args, id)

		if _, err := s.db.Conn().ExecContext(ctx, query, args...); err != nil {
			return count, fmt.Errorf("bulk set status: %w", err)
		}
		count++
	}
	return count, nil
}

// MarkResolved records an external agent resolving a comment.
func (s *CommentStore) MarkResolved(ctx context.Context, id, resolvedBy string) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !comment.CanTransition(current.Status, comment.StatusResolved) {
		return &comment.TransitionError{From: current.Status, To: comment.StatusResolved}
	}

	_, err = s.db.Conn().ExecContext(ctx,
		`UPDATE comments SET status = ?, resolved_at = ?, resolved_by = ? WHERE id = ?`,
		string(comment.StatusResolved), time.Now().UnixNano(), resolvedBy, id)
	if err != nil {
		return fmt.Errorf("mark resolved: %w", err)
	}
	return nil
}

// CountsByStatus returns a zero-filled map with every defined status key.
func (s *CommentStore) CountsByStatus(ctx context.Context, sessionID string) (map[comment.Status]int, error) {
	counts := make(map[comment.Status]int, len(comment.Statuses))
	for _, st := range comment.Statuses {
		counts[st] = 0
	}

	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT status, COUNT(*) FROM comments WHERE session_id = ? GROUP BY status`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("count comments by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[comment.Status(st)] = n
	}
	return counts, rows.Err()
}

func (s *CommentStore) getSessionByRepoBranch(ctx context.Context, repoID, branch string) (comment.Session, error) {
	return s.scanSession(s.db.Conn().QueryRowContext(ctx,
		`SELECT id, repo_id, branch, base_branch_override, created_at FROM review_sessions WHERE repo_id = ? AND branch = ?`,
		repoID, branch))
}

func (s *CommentStore) scanSession(row *sql.Row) (comment.Session, error) {
	var sess comment.Session
	var createdAt int64
	err := row.Scan(&sess.ID, &sess.RepoID, &sess.Branch, &sess.BaseBranchOverride, &createdAt)
	if IsNotFoundError(err) {
		return comment.Session{}, comment.ErrSessionNotFound
	}
	if err != nil {
		return comment.Session{}, fmt.Errorf("get review session: %w", err)
	}
	sess.CreatedAt = time.Unix(0, createdAt)
	return sess, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared comment scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanComment(row scanner) (comment.Comment, error) {
	var (
		c                  comment.Comment
		lineStart, lineEnd sql.NullInt64
		side, status       string
		createdAt          int64
		sentAt, resolvedAt sql.NullInt64
	)
	err := row.Scan(&c.ID, &c.SessionID, &c.FilePath, &lineStart, &lineEnd, &side,
		&c.Content, &status, &createdAt, &sentAt, &resolvedAt, &c.ResolvedBy)
	if err != nil {
		return comment.Comment{}, err
	}

	c.Side = comment.Side(side)
	c.Status = comment.Status(status)
	c.CreatedAt = time.Unix(0, createdAt)
	c.LineStart = fromNullInt(lineStart)
	c.LineEnd = fromNullInt(lineEnd)
	c.SentAt = fromNullTime(sentAt)
	c.ResolvedAt = fromNullTime(resolvedAt)
	return c, nil
}

func toNullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func fromNullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func toNullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNullTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64)
	return &t
}
