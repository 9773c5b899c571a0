package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/critic-sh/critic/internal/core/ai"
	"github.com/critic-sh/critic/internal/core/comment"
	"github.com/critic-sh/critic/internal/core/detect"
	"github.com/critic-sh/critic/internal/core/mcp"
	"github.com/critic-sh/critic/internal/core/target"
)

// memStore is an in-memory comment.Store with the same transition rules as
// the sqlite-backed one.
type memStore struct {
	seq      int
	sessions map[string]comment.Session
	byRepo   map[string]string
	comments map[string]comment.Comment
	order    []string
}

func newMemStore() *memStore {
	return &memStore{
		sessions: map[string]comment.Session{},
		byRepo:   map[string]string{},
		comments: map[string]comment.Comment{},
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) EnsureSession(_ context.Context, repoID, branch string) (comment.Session, error) {
	key := repoID + "\x00" + branch
	if id, ok := m.byRepo[key]; ok {
		return m.sessions[id], nil
	}
	s := comment.Session{ID: m.nextID("s"), RepoID: repoID, Branch: branch, CreatedAt: time.Now()}
	m.sessions[s.ID] = s
	m.byRepo[key] = s.ID
	return s, nil
}

func (m *memStore) GetSession(_ context.Context, id string) (comment.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return comment.Session{}, comment.ErrSessionNotFound
	}
	return s, nil
}

func (m *memStore) SetBaseBranchOverride(_ context.Context, sessionID, base string) error {
	s, ok := m.sessions[sessionID]
	if !ok {
		return comment.ErrSessionNotFound
	}
	s.BaseBranchOverride = base
	m.sessions[sessionID] = s
	return nil
}

func (m *memStore) Create(_ context.Context, in comment.CreateInput) (comment.Comment, error) {
	if err := in.Validate(); err != nil {
		return comment.Comment{}, err
	}
	c := comment.Comment{
		ID:        m.nextID("c"),
		SessionID: in.SessionID,
		FilePath:  in.FilePath,
		LineStart: in.LineStart,
		LineEnd:   in.LineEnd,
		Side:      in.Side,
		Content:   in.Content,
		Status:    comment.StatusQueued,
		CreatedAt: time.Now(),
	}
	m.comments[c.ID] = c
	m.order = append(m.order, c.ID)
	return c, nil
}

func (m *memStore) Get(_ context.Context, id string) (comment.Comment, error) {
	c, ok := m.comments[id]
	if !ok {
		return comment.Comment{}, comment.ErrNotFound
	}
	return c, nil
}

func (m *memStore) ListBySession(_ context.Context, sessionID string) ([]comment.Comment, error) {
	var out []comment.Comment
	for _, id := range m.order {
		if c := m.comments[id]; c.SessionID == sessionID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, id string, in comment.UpdateInput) (comment.Comment, error) {
	c, ok := m.comments[id]
	if !ok {
		return comment.Comment{}, comment.ErrNotFound
	}
	if in.Status != nil {
		if !comment.CanTransition(c.Status, *in.Status) {
			return comment.Comment{}, &comment.TransitionError{From: c.Status, To: *in.Status}
		}
		c.Status = *in.Status
	}
	if in.Content != nil {
		c.Content = *in.Content
	}
	m.comments[id] = c
	return c, nil
}

func (m *memStore) Delete(_ context.Context, id string) (bool, error) {
	c, ok := m.comments[id]
	if !ok || c.Status == comment.StatusSent {
		return false, nil
	}
	delete(m.comments, id)
	return true, nil
}

func (m *memStore) BulkSetStatus(_ context.Context, ids []string, status comment.Status) (int, error) {
	count := 0
	for _, id := range ids {
		c, ok := m.comments[id]
		if !ok || !comment.CanTransition(c.Status, status) {
			continue
		}
		c.Status = status
		m.comments[id] = c
		count++
	}
	return count, nil
}

func (m *memStore) MarkSent(ctx context.Context, ids []string) (int, error) {
	count, err := m.BulkSetStatus(ctx, ids, comment.StatusSent)
	now := time.Now()
	for _, id := range ids {
		if c, ok := m.comments[id]; ok && c.Status == comment.StatusSent {
			c.SentAt = &now
			m.comments[id] = c
		}
	}
	return count, err
}

func (m *memStore) MarkResolved(_ context.Context, id, resolvedBy string) error {
	c, ok := m.comments[id]
	if !ok {
		return comment.ErrNotFound
	}
	now := time.Now()
	c.Status = comment.StatusResolved
	c.ResolvedAt = &now
	c.ResolvedBy = resolvedBy
	m.comments[id] = c
	return nil
}

func (m *memStore) CountsByStatus(_ context.Context, sessionID string) (map[comment.Status]int, error) {
	counts := make(map[comment.Status]int, len(comment.Statuses))
	for _, s := range comment.Statuses {
		counts[s] = 0
	}
	for _, c := range m.comments {
		if c.SessionID == sessionID {
			counts[c.Status]++
		}
	}
	return counts, nil
}

var _ comment.Store = (*memStore)(nil)

type memClientStore struct {
	clients []mcp.Client
	err     error
}

func (s *memClientStore) Heartbeat(_ context.Context, name, version, workingDir string) (mcp.Client, error) {
	c := mcp.Client{ID: "mc-" + name, Name: name, Version: version, WorkingDir: workingDir, LastSeenAt: time.Now()}
	s.clients = append(s.clients, c)
	return c, nil
}

func (s *memClientStore) ListSeenSince(_ context.Context, cutoff time.Time) ([]mcp.Client, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []mcp.Client
	for _, c := range s.clients {
		if !c.LastSeenAt.Before(cutoff) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memClientStore) PruneBefore(_ context.Context, _ time.Time) (int, error) { return 0, nil }

type memKV struct{ values map[string]string }

func (m *memKV) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.values[key]
	return v, ok, nil
}
func (m *memKV) Set(_ context.Context, key, value string) error { m.values[key] = value; return nil }
func (m *memKV) Delete(_ context.Context, key string) error     { delete(m.values, key); return nil }

type stubLister struct{ snap detect.Snapshot }

func (s *stubLister) ListSessions(context.Context) detect.Snapshot        { return s.snap }
func (s *stubLister) ListForRepo(context.Context, string) detect.Snapshot { return s.snap }

type fixture struct {
	store   *memStore
	clients *memClientStore
	lister  *stubLister
	mux     http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	store := newMemStore()
	clients := &memClientStore{}
	lister := &stubLister{}

	registry := mcp.NewRegistry(clients, mcp.DefaultFreshness, zerolog.Nop())
	resolver := target.NewResolver(registry, zerolog.Nop())
	pipeline := ai.NewPipeline(&memKV{values: map[string]string{}}, nil, zerolog.Nop())

	h := NewHandlers(store, registry, resolver, lister, pipeline, zerolog.Nop())
	return &fixture{
		store:   store,
		clients: clients,
		lister:  lister,
		mux:     NewRouter(h, zerolog.Nop()),
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (f *fixture) createComment(t *testing.T, sessionID, content string) string {
	t.Helper()
	rec, out := f.do(t, "POST", "/comments", map[string]any{
		"intent": "create", "sessionId": sessionID, "filePath": "a.go", "content": content,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	return out["comment"].(map[string]any)["id"].(string)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec, out := f.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["status"])
}

func TestTargets_ClipboardLast(t *testing.T) {
	f := newFixture(t)
	f.clients.clients = []mcp.Client{
		{ID: "m1", Name: "ide", LastSeenAt: time.Now()},
	}

	rec, out := f.do(t, "GET", "/targets", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	targets := out["targets"].([]any)
	require.Len(t, targets, 2)
	first := targets[0].(map[string]any)
	last := targets[1].(map[string]any)
	assert.Equal(t, "mcp_client", first["type"])
	assert.Equal(t, "clipboard", last["type"])
	assert.Equal(t, true, last["connected"])
	assert.Nil(t, out["error"])
}

func TestTargets_DegradesTo200(t *testing.T) {
	f := newFixture(t)
	f.clients.err = fmt.Errorf("database locked")

	rec, out := f.do(t, "GET", "/targets", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	targets := out["targets"].([]any)
	require.Len(t, targets, 1)
	assert.Equal(t, "clipboard", targets[0].(map[string]any)["type"])
	assert.NotEmpty(t, out["error"])
}

func TestMcpStatus(t *testing.T) {
	f := newFixture(t)
	f.clients.clients = []mcp.Client{
		{ID: "m1", Name: "ide", LastSeenAt: time.Now()},
		{ID: "m2", Name: "stale", LastSeenAt: time.Now().Add(-time.Hour)},
	}

	rec, out := f.do(t, "GET", "/mcp-status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["connected"])
	assert.Equal(t, float64(1), out["clientCount"])
	assert.Len(t, out["clients"].([]any), 1)
}

func TestSessions_Unavailable(t *testing.T) {
	f := newFixture(t)
	f.lister.snap = detect.Snapshot{Available: false}

	rec, out := f.do(t, "GET", "/sessions?repoPath=/repo", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, out["available"])
	assert.Empty(t, out["sessions"])
	assert.Empty(t, out["codingAgentSessions"])
}

func TestSessions_FiltersAgentSessions(t *testing.T) {
	f := newFixture(t)
	f.lister.snap = detect.Snapshot{Available: true, Sessions: []detect.Session{
		{Name: "work", DetectedProcess: "claude"},
		{Name: "scratch"},
	}}

	rec, out := f.do(t, "GET", "/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["available"])
	assert.Len(t, out["sessions"].([]any), 2)

	agents := out["codingAgentSessions"].([]any)
	require.Len(t, agents, 1)
	assert.Equal(t, "work", agents[0].(map[string]any)["name"])
}

func TestReviewSession_LazyCreateIsStable(t *testing.T) {
	f := newFixture(t)

	rec, out := f.do(t, "GET", "/review-session?repoId=r1&branch=main", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	id := out["session"].(map[string]any)["id"].(string)

	_, out2 := f.do(t, "GET", "/review-session?repoId=r1&branch=main", nil)
	assert.Equal(t, id, out2["session"].(map[string]any)["id"])

	rec, _ = f.do(t, "GET", "/review-session?repoId=r1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestComments_CreateStageSendLifecycle(t *testing.T) {
	f := newFixture(t)
	id1 := f.createComment(t, "s1", "first")
	id2 := f.createComment(t, "s1", "second")

	rec, out := f.do(t, "POST", "/comments", map[string]any{
		"intent": "stage", "ids": []string{id1, id2, "missing"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), out["count"], "unknown ids are skipped, not errors")

	rec, out = f.do(t, "POST", "/comments", map[string]any{
		"intent": "markSent", "ids": []string{id1, id2},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), out["count"])

	rec, out = f.do(t, "GET", "/comments/counts?sessionId=s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	counts := out["counts"].(map[string]any)
	assert.Equal(t, float64(2), counts["sent"])
	assert.Equal(t, float64(0), counts["queued"])
	// Every status key is present even when zero.
	for _, s := range comment.Statuses {
		assert.Contains(t, counts, string(s))
	}
}

func TestComments_ValidationAndUnknownIntent(t *testing.T) {
	f := newFixture(t)

	rec, out := f.do(t, "POST", "/comments", map[string]any{
		"intent": "create", "sessionId": "s1", "content": "",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, out["error"])

	rec, _ = f.do(t, "POST", "/comments", map[string]any{"intent": "explode"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, "POST", "/comments", map[string]any{
		"intent": "update", "id": "missing", "content": "x",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestComments_BackwardTransitionRejected(t *testing.T) {
	f := newFixture(t)
	id := f.createComment(t, "s1", "x")
	_, _ = f.do(t, "POST", "/comments", map[string]any{"intent": "markSent", "ids": []string{id}})

	rec, _ := f.do(t, "POST", "/comments", map[string]any{
		"intent": "update", "id": id, "status": "queued",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestComments_DeleteSentIsRefused(t *testing.T) {
	f := newFixture(t)
	id := f.createComment(t, "s1", "x")
	_, _ = f.do(t, "POST", "/comments", map[string]any{"intent": "markSent", "ids": []string{id}})

	rec, out := f.do(t, "POST", "/comments", map[string]any{"intent": "delete", "id": id})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, out["deleted"])

	_, out = f.do(t, "GET", "/comments?sessionId=s1", nil)
	assert.Len(t, out["comments"].([]any), 1)
}

func TestProcess_SettingsRoundTrip(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, "POST", "/process", map[string]any{
		"intent": "saveSettings", "provider": "openai", "model": "gpt-4o",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, out := f.do(t, "GET", "/process", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	settings := out["currentSettings"].(map[string]any)
	assert.Equal(t, "openai", settings["provider"])
	assert.Equal(t, "gpt-4o", settings["model"])
	assert.Contains(t, out["providerModels"].(map[string]any), "gemini")
	// No credentials in the test environment.
	assert.Empty(t, out["availableProviders"])
}

func TestProcess_ExhaustedChainIs502(t *testing.T) {
	f := newFixture(t)
	id := f.createComment(t, "s1", "x")

	rec, out := f.do(t, "POST", "/process", map[string]any{
		"intent": "process", "commentIds": []string{id},
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotEmpty(t, out["error"])
}

func TestMcp_HeartbeatResolvePending(t *testing.T) {
	f := newFixture(t)

	rec, out := f.do(t, "POST", "/mcp/heartbeat", map[string]any{
		"name": "ide", "version": "1.0", "workingDir": "/repo",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ide", out["client"].(map[string]any)["name"])

	id := f.createComment(t, "s1", "fix it")
	_, _ = f.do(t, "POST", "/comments", map[string]any{"intent": "markSent", "ids": []string{id}})
	staged := f.createComment(t, "s1", "ready to go")
	_, _ = f.do(t, "POST", "/comments", map[string]any{"intent": "stage", "ids": []string{staged}})
	f.createComment(t, "s1", "still queued")

	_, out = f.do(t, "GET", "/mcp/pending?sessionId=s1", nil)
	pending := out["comments"].([]any)
	require.Len(t, pending, 2)
	assert.Equal(t, id, pending[0].(map[string]any)["id"])

	rec, _ = f.do(t, "POST", "/mcp/resolve", map[string]any{"id": id, "resolvedBy": "agent"})
	require.Equal(t, http.StatusOK, rec.Code)

	_, out = f.do(t, "GET", "/mcp/pending?sessionId=s1", nil)
	pending = out["comments"].([]any)
	require.Len(t, pending, 1)
	assert.Equal(t, staged, pending[0].(map[string]any)["id"])

	rec, _ = f.do(t, "POST", "/mcp/resolve", map[string]any{"id": "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
