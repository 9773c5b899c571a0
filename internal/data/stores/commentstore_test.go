package stores

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/critic-sh/critic/internal/core/comment"
	"github.com/critic-sh/critic/internal/data/db"
)

func newTestDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func newTestCommentStore(t *testing.T) (*CommentStore, comment.Session) {
	t.Helper()
	store := NewCommentStore(newTestDB(t))
	sess, err := store.EnsureSession(context.Background(), "repo-1", "main")
	require.NoError(t, err)
	return store, sess
}

func intp(n int) *int { return &n }

func statusp(s comment.Status) *comment.Status { return &s }

func strp(s string) *string { return &s }

func TestEnsureSession_LazyAndStable(t *testing.T) {
	store := NewCommentStore(newTestDB(t))
	ctx := context.Background()

	first, err := store.EnsureSession(ctx, "repo-1", "main")
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	again, err := store.EnsureSession(ctx, "repo-1", "main")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	other, err := store.EnsureSession(ctx, "repo-1", "feature")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestSetBaseBranchOverride(t *testing.T) {
	store, sess := newTestCommentStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetBaseBranchOverride(ctx, sess.ID, "develop"))

	got, err := store.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "develop", got.BaseBranchOverride)

	err = store.SetBaseBranchOverride(ctx, "missing", "develop")
	assert.ErrorIs(t, err, comment.ErrSessionNotFound)
}

func TestCreateAndGet(t *testing.T) {
	store, sess := newTestCommentStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, comment.CreateInput{
		SessionID: sess.ID,
		FilePath:  "internal/app/server.go",
		LineStart: intp(10),
		LineEnd:   intp(12),
		Side:      comment.SideNew,
		Content:   "  handle the error  ",
	})
	require.NoError(t, err)
	assert.Equal(t, comment.StatusQueued, created.Status)
	assert.Equal(t, "handle the error", created.Content, "content is trimmed")

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	require.NotNil(t, got.LineStart)
	assert.Equal(t, 10, *got.LineStart)
	assert.Equal(t, comment.SideNew, got.Side)
	assert.Nil(t, got.SentAt)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, comment.ErrNotFound)
}

func TestCreate_DefaultsToGeneralFile(t *testing.T) {
	store, sess := newTestCommentStore(t)

	created, err := store.Create(context.Background(), comment.CreateInput{
		SessionID: sess.ID,
		Content:   "session-wide note",
	})
	require.NoError(t, err)
	assert.Equal(t, comment.GeneralFile, created.FilePath)
	assert.Nil(t, created.LineStart)
}

func TestCreate_Validation(t *testing.T) {
	store, sess := newTestCommentStore(t)

	var verr *comment.ValidationError
	_, err := store.Create(context.Background(), comment.CreateInput{SessionID: sess.ID, Content: "   "})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "content", verr.Field)
}

func TestUpdate_LifecycleScenario(t *testing.T) {
	store, sess := newTestCommentStore(t)
	ctx := context.Background()

	c, err := store.Create(ctx, comment.CreateInput{SessionID: sess.ID, Content: "queued"})
	require.NoError(t, err)

	// queued -> staged, with an edit on the way.
	c, err = store.Update(ctx, c.ID, comment.UpdateInput{
		Content: strp("staged now"),
		Status:  statusp(comment.StatusStaged),
	})
	require.NoError(t, err)
	assert.Equal(t, comment.StatusStaged, c.Status)
	assert.Equal(t, "staged now", c.Content)

	// staged -> sent stamps sentAt.
	c, err = store.Update(ctx, c.ID, comment.UpdateInput{Status: statusp(comment.StatusSent)})
	require.NoError(t, err)
	require.NotNil(t, c.SentAt)

	// Backward move is rejected and nothing is written.
	var terr *comment.TransitionError
	_, err = store.Update(ctx, c.ID, comment.UpdateInput{Status: statusp(comment.StatusQueued)})
	require.ErrorAs(t, err, &terr)

	got, err := store.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, comment.StatusSent, got.Status)

	// Content edits on a sent comment are refused.
	var verr *comment.ValidationError
	_, err = store.Update(ctx, c.ID, comment.UpdateInput{Content: strp("rewrite")})
	require.ErrorAs(t, err, &verr)
}

func TestDelete(t *testing.T) {
	store, sess := newTestCommentStore(t)
	ctx := context.Background()

	c, err := store.Create(ctx, comment.CreateInput{SessionID: sess.ID, Content: "x"})
	require.NoError(t, err)

	removed, err := store.Delete(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	// Idempotent: second delete reports no row.
	removed, err = store.Delete(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	// Sent comments are not deletable.
	sent, err := store.Create(ctx, comment.CreateInput{SessionID: sess.ID, Content: "y"})
	require.NoError(t, err)
	_, err = store.MarkSent(ctx, []string{sent.ID})
	require.NoError(t, err)

	removed, err = store.Delete(ctx, sent.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = store.Get(ctx, sent.ID)
	require.NoError(t, err)
}

func TestBulkSetStatus_SkipsUnknownAndIllegal(t *testing.T) {
	store, sess := newTestCommentStore(t)
	ctx := context.Background()

	a, err := store.Create(ctx, comment.CreateInput{SessionID: sess.ID, Content: "a"})
	require.NoError(t, err)
	b, err := store.Create(ctx, comment.CreateInput{SessionID: sess.ID, Content: "b"})
	require.NoError(t, err)

	// b is already cancelled, which cannot move to staged.
	_, err = store.BulkSetStatus(ctx, []string{b.ID}, comment.StatusCancelled)
	require.NoError(t, err)

	count, err := store.BulkSetStatus(ctx, []string{a.ID, b.ID, "missing"}, comment.StatusStaged)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := store.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, comment.StatusCancelled, got.Status)
}

func TestMarkSent_StampsOnce(t *testing.T) {
	store, sess := newTestCommentStore(t)
	ctx := context.Background()

	c, err := store.Create(ctx, comment.CreateInput{SessionID: sess.ID, Content: "x"})
	require.NoError(t, err)

	count, err := store.MarkSent(ctx, []string{c.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	first, err := store.Get(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, first.SentAt)

	// Same-status write is allowed and keeps the original stamp.
	count, err = store.MarkSent(ctx, []string{c.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	second, err := store.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, *first.SentAt, *second.SentAt)
}

func TestMarkResolved(t *testing.T) {
	store, sess := newTestCommentStore(t)
	ctx := context.Background()

	c, err := store.Create(ctx, comment.CreateInput{SessionID: sess.ID, Content: "x"})
	require.NoError(t, err)
	_, err = store.MarkSent(ctx, []string{c.ID})
	require.NoError(t, err)

	require.NoError(t, store.MarkResolved(ctx, c.ID, "agent"))

	got, err := store.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, comment.StatusResolved, got.Status)
	assert.Equal(t, "agent", got.ResolvedBy)
	require.NotNil(t, got.ResolvedAt)

	assert.ErrorIs(t, store.MarkResolved(ctx, "missing", "agent"), comment.ErrNotFound)
}

func TestCountsByStatus_ZeroFilledAndSums(t *testing.T) {
	store, sess := newTestCommentStore(t)
	ctx := context.Background()

	counts, err := store.CountsByStatus(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, counts, len(comment.Statuses))
	for _, s := range comment.Statuses {
		assert.Equal(t, 0, counts[s])
	}

	for i := 0; i < 3; i++ {
		_, err := store.Create(ctx, comment.CreateInput{SessionID: sess.ID, Content: "x"})
		require.NoError(t, err)
	}
	staged, err := store.Create(ctx, comment.CreateInput{SessionID: sess.ID, Content: "y"})
	require.NoError(t, err)
	_, err = store.BulkSetStatus(ctx, []string{staged.ID}, comment.StatusStaged)
	require.NoError(t, err)

	counts, err = store.CountsByStatus(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, counts[comment.StatusQueued])
	assert.Equal(t, 1, counts[comment.StatusStaged])

	total := 0
	for _, n := range counts {
		total += n
	}
	all, err := store.ListBySession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, len(all), total)
}

func TestListBySession_OldestFirst(t *testing.T) {
	store, sess := newTestCommentStore(t)
	ctx := context.Background()

	first, err := store.Create(ctx, comment.CreateInput{SessionID: sess.ID, Content: "first"})
	require.NoError(t, err)
	second, err := store.Create(ctx, comment.CreateInput{SessionID: sess.ID, Content: "second"})
	require.NoError(t, err)

	list, err := store.ListBySession(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []string{first.ID, second.ID}, []string{list[0].ID, list[1].ID})
}
