package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_MissingCredential(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	for _, name := range []string{"anthropic", "openai", "gemini"} {
		_, err := New(name)
		assert.ErrorIs(t, err, ErrNoCredential, name)
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New("mystery")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoCredential)
}

func TestOpenAI_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openaiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)

		json.NewEncoder(w).Encode(openaiResponse{
			Choices: []openaiChoice{
				{Message: openaiMessage{Role: "assistant", Content: "consolidated"}},
			},
		})
	}))
	defer server.Close()

	o := &OpenAI{apiKey: "test-key", baseURL: server.URL, client: server.Client()}

	got, err := o.Generate(context.Background(), "gpt-4o-mini", "fix the thing")
	require.NoError(t, err)
	assert.Equal(t, "consolidated", got)
}

func TestOpenAI_RateLimitRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			w.WriteHeader(429)
			w.Write([]byte(`{"error":"rate limited"}`))
			return
		}
		json.NewEncoder(w).Encode(openaiResponse{
			Choices: []openaiChoice{
				{Message: openaiMessage{Role: "assistant", Content: "ok"}},
			},
		})
	}))
	defer server.Close()

	o := &OpenAI{apiKey: "test-key", baseURL: server.URL, client: server.Client()}

	got, err := o.Generate(context.Background(), "gpt-4o-mini", "x")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, attempts)
}

func TestOpenAI_AuthErrorNotRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(401)
		w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer server.Close()

	o := &OpenAI{apiKey: "bad", baseURL: server.URL, client: server.Client()}

	_, err := o.Generate(context.Background(), "gpt-4o-mini", "x")
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Equal(t, 1, attempts)
}

func TestAnthropic_GenerateJoinsTextBlocks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))

		json.NewEncoder(w).Encode(anthropicResponse{
			Content: []anthropicBlock{
				{Type: "text", Text: "part one "},
				{Type: "tool_use", Text: "ignored"},
				{Type: "text", Text: "part two"},
			},
		})
	}))
	defer server.Close()

	a := &Anthropic{apiKey: "test-key", baseURL: server.URL, client: server.Client()}

	got, err := a.Generate(context.Background(), "claude-3-5-haiku-latest", "x")
	require.NoError(t, err)
	assert.Equal(t, "part one part two", got)
}

func TestGemini_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-2.0-flash")
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		json.NewEncoder(w).Encode(geminiResponse{
			Candidates: []geminiCandidate{
				{Content: geminiContent{Parts: []geminiPart{{Text: "answer"}}}},
			},
		})
	}))
	defer server.Close()

	g := &Gemini{apiKey: "test-key", baseURL: server.URL, client: server.Client()}

	got, err := g.Generate(context.Background(), "gemini-2.0-flash", "x")
	require.NoError(t, err)
	assert.Equal(t, "answer", got)
}

func TestGemini_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(geminiResponse{})
	}))
	defer server.Close()

	g := &Gemini{apiKey: "test-key", baseURL: server.URL, client: server.Client()}

	_, err := g.Generate(context.Background(), "gemini-2.0-flash", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no content")
}

func TestModels_KnownCatalogs(t *testing.T) {
	for _, name := range Names() {
		assert.NotEmpty(t, Models(name), name)
	}
	assert.Nil(t, Models("mystery"))
}
