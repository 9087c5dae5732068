package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/plancite/internal/core/domain"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *EmbeddingService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	svc, err := NewEmbeddingService(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	return svc
}

func TestNewEmbeddingService_Dimensions(t *testing.T) {
	svc, err := NewEmbeddingService(Config{})
	require.NoError(t, err)
	assert.Equal(t, 768, svc.Dimensions())
	assert.Equal(t, "ollama", svc.Provider())

	svc, err = NewEmbeddingService(Config{Model: "all-minilm"})
	require.NoError(t, err)
	assert.Equal(t, 384, svc.Dimensions())

	_, err = NewEmbeddingService(Config{Model: "mystery"})
	assert.Error(t, err)
}

func TestEmbedBatch(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultModel, req.Model)
		assert.Equal(t, []string{"door", "window"}, req.Input)
		_, _ = w.Write([]byte(`{"embeddings": [[1, 2], [3, 4]]}`))
	})

	got, err := svc.EmbedBatch(context.Background(), []string{"door", "window"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2}, {3, 4}}, got)

	one, err := svc.Embed(context.Background(), "door")
	require.Error(t, err, "server always returns two embeddings")
	assert.Nil(t, one)
}

func TestEmbedBatch_Errors(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": "model loading"}`))
	})
	_, err := svc.EmbedBatch(context.Background(), []string{"a"})
	var perr *domain.EmbeddingProviderError
	require.True(t, errors.As(err, &perr))
	assert.True(t, perr.Retryable)
	assert.Contains(t, err.Error(), "model loading")

	svc = newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "model not found"}`))
	})
	_, err = svc.EmbedBatch(context.Background(), []string{"a"})
	require.True(t, errors.As(err, &perr))
	assert.False(t, perr.Retryable)
}

func TestEmbedBatch_TransportErrorIsRetryable(t *testing.T) {
	svc, err := NewEmbeddingService(Config{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = svc.EmbedBatch(context.Background(), []string{"a"})
	var perr *domain.EmbeddingProviderError
	require.True(t, errors.As(err, &perr))
	assert.True(t, perr.Retryable)
}
