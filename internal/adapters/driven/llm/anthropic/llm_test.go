package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
)

func newTestService(t *testing.T, url string) *LLMService {
	t.Helper()
	svc, err := NewLLMService(Config{APIKey: "k", BaseURL: url, Backoff: time.Millisecond})
	require.NoError(t, err)
	return svc
}

func TestChat_SystemFoldingAndPrefill(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))

		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "be precise\n\ncite pages", req.System)
		assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
		assert.Equal(t, []message{
			{Role: "user", Content: "context\n\nquestion"},
			{Role: "assistant", Content: "{"},
		}, req.Messages)
		_, _ = w.Write([]byte(`{"content": [{"type": "text", "text": "\"answer\": \"ok\"}"}], "stop_reason": "end_turn"}`))
	}))
	defer srv.Close()

	out, err := newTestService(t, srv.URL).Chat(context.Background(), []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: "be precise"},
		{Role: driven.RoleSystem, Content: "cite pages"},
		{Role: driven.RoleUser, Content: "context"},
		{Role: driven.RoleUser, Content: "question"},
	}, driven.ChatOptions{JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"answer": "ok"}`, out)
}

func TestChat_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"content": [], "stop_reason": "max_tokens"}`))
	}))
	defer srv.Close()

	_, err := newTestService(t, srv.URL).Chat(context.Background(),
		[]driven.ChatMessage{{Role: driven.RoleUser, Content: "q"}}, driven.ChatOptions{})
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestChat_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "authentication_error", "message": "invalid x-api-key"}}`))
	}))
	defer srv.Close()

	_, err := newTestService(t, srv.URL).Chat(context.Background(),
		[]driven.ChatMessage{{Role: driven.RoleUser, Content: "q"}}, driven.ChatOptions{})
	require.Error(t, err)
	var pe *domain.LLMProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)
	assert.Contains(t, err.Error(), "authentication_error: invalid x-api-key")
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	assert.NoError(t, newTestService(t, srv.URL).Ping(context.Background()))
}

func TestNewLLMService_RequiresKey(t *testing.T) {
	_, err := NewLLMService(Config{})
	assert.Error(t, err)
}
