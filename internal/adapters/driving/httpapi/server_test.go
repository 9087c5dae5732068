package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driving"
)

type mockRetrieval struct {
	resp *domain.SearchResponse
	err  error
	opts domain.SearchOptions
}

func (m *mockRetrieval) Retrieve(_ context.Context, _ string, opts domain.SearchOptions) (*domain.SearchResponse, error) {
	m.opts = opts
	return m.resp, m.err
}

type mockAnswer struct {
	err  error
	opts domain.AnswerOptions
}

func (m *mockAnswer) Answer(_ context.Context, q string, opts domain.AnswerOptions) (*domain.Answer, error) {
	m.opts = opts
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Answer{Answer: "re: " + q, Citations: []domain.Citation{}}, nil
}

type mockHighlight struct{ err error }

func (m *mockHighlight) Highlight(_ context.Context, id string, scale float64) (*domain.Highlight, error) {
	if m.err != nil {
		return nil, m.err
	}
	box := domain.NewBoundingBox(0, 0, 100, 50)
	return &domain.Highlight{ChunkID: id, BBox: box, PageHeight: 792, Scale: scale, Rect: domain.MapToRender(box, 792, scale)}, nil
}

type mockStructure struct {
	res       *domain.ClusterResult
	threshold float64
}

func (m *mockStructure) Cluster(_ context.Context, _ []string, threshold float64) (*domain.ClusterResult, error) {
	m.threshold = threshold
	return m.res, nil
}

type mockIndexing struct {
	docs    []domain.Document
	deleted string
	err     error
}

func (m *mockIndexing) IndexDocument(context.Context, string, domain.SourcePDF, driving.IndexOptions) (*domain.IndexResult, error) {
	return nil, nil
}

func (m *mockIndexing) IndexBatch(context.Context, string, []domain.SourcePDF, driving.IndexOptions) []domain.IndexResult {
	return nil
}

func (m *mockIndexing) DeleteDocument(_ context.Context, id string) error {
	m.deleted = id
	return m.err
}

func (m *mockIndexing) ListDocuments(context.Context) ([]domain.Document, error) {
	return m.docs, m.err
}

func newServer(t *testing.T, ports Ports) *Server {
	t.Helper()
	if ports.Retrieval == nil {
		ports.Retrieval = &mockRetrieval{resp: &domain.SearchResponse{Results: []domain.SearchResult{}}}
	}
	s, err := NewServer(ports)
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestNewServer_RequiresRetrieval(t *testing.T) {
	_, err := NewServer(Ports{})
	assert.ErrorIs(t, err, ErrMissingRetrievalService)
}

func TestHealthz(t *testing.T) {
	code, body := do(t, newServer(t, Ports{}), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["result"])
}

func TestMetricsMounted(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"plancite_chunks_total": 3}`))
	})
	code, body := do(t, newServer(t, Ports{Metrics: metrics}), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 3.0, body["plancite_chunks_total"])

	code, _ = do(t, newServer(t, Ports{}), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSearch(t *testing.T) {
	retrieval := &mockRetrieval{resp: &domain.SearchResponse{
		Method: domain.SearchMethodKeyword,
		Results: []domain.SearchResult{{
			ChunkID:    "a101:c0001",
			PageNumber: 2,
			BBox:       domain.NewBoundingBox(1, 2, 3, 4),
		}},
	}}
	s := newServer(t, Ports{Retrieval: retrieval})

	code, body := do(t, s, http.MethodPost, "/v1/search",
		`{"query": "fire damper", "page_number": 2, "category": "table", "weights": {"vector": 0, "keyword": 1}}`)
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, defaultTopK, retrieval.opts.TopK)
	assert.Equal(t, domain.CategoryTable, retrieval.opts.Filter.Category)
	assert.Equal(t, &domain.HybridWeights{Vector: 0, Keyword: 1}, retrieval.opts.Weights)

	assert.Equal(t, "keyword", body["search_method"])
	results := body["results"].([]any)
	require.Len(t, results, 1)
	first := results[0].(map[string]any)
	assert.Equal(t, []any{1.0, 2.0, 3.0, 4.0}, first["bbox"])
	assert.Equal(t, 2.0, first["page_number"])
}

func TestSearch_Validation(t *testing.T) {
	s := newServer(t, Ports{})

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing query", `{"top_k": 3}`, "Query"},
		{"negative top_k", `{"query": "q", "top_k": -1}`, "TopK"},
		{"bad category", `{"query": "q", "category": "drawing"}`, "Category"},
		{"negative weight", `{"query": "q", "weights": {"vector": -1, "keyword": 1}}`, "Vector"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, s, http.MethodPost, "/v1/search", tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			errs := body["errors"].(map[string]any)
			assert.Contains(t, errs, tt.field)
		})
	}

	code, body := do(t, s, http.MethodPost, "/v1/search", `{not json`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid JSON request", body["error"])
}

func TestSearch_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{domain.ErrRetrievalUnavailable, http.StatusServiceUnavailable},
		{domain.ErrNoIndexedContent, http.StatusNotFound},
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			s := newServer(t, Ports{Retrieval: &mockRetrieval{err: tt.err}})
			code, body := do(t, s, http.MethodPost, "/v1/search", `{"query": "q"}`)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, float64(tt.code), body["code"])
		})
	}
}

func TestAsk(t *testing.T) {
	answer := &mockAnswer{}
	s := newServer(t, Ports{Answer: answer})

	code, body := do(t, s, http.MethodPost, "/v1/ask", `{"question": "stair width?", "top_k": 4, "max_context_tokens": 900}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "re: stair width?", body["answer"])
	assert.Equal(t, 4, answer.opts.Search.TopK)
	assert.Equal(t, 900, answer.opts.MaxContextTokens)

	code, _ = do(t, newServer(t, Ports{Answer: &mockAnswer{err: domain.ErrLLMUnavailable}}),
		http.MethodPost, "/v1/ask", `{"question": "q"}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = do(t, newServer(t, Ports{}), http.MethodPost, "/v1/ask", `{"question": "q"}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = do(t, s, http.MethodPost, "/v1/ask", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHighlight(t *testing.T) {
	s := newServer(t, Ports{Highlight: &mockHighlight{}})

	code, body := do(t, s, http.MethodGet, "/v1/chunks/a101:c0002/highlight?scale=2", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "a101:c0002", body["chunk_id"])
	rect := body["rect"].(map[string]any)
	assert.Equal(t, 0.0, rect["x"])
	assert.Equal(t, 1484.0, rect["y"])
	assert.Equal(t, 200.0, rect["width"])

	code, body = do(t, s, http.MethodGet, "/v1/chunks/x/highlight", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1.0, body["render_scale"])

	code, _ = do(t, s, http.MethodGet, "/v1/chunks/x/highlight?scale=-1", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, newServer(t, Ports{Highlight: &mockHighlight{err: domain.ErrNotFound}}),
		http.MethodGet, "/v1/chunks/missing/highlight", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestStructure(t *testing.T) {
	structure := &mockStructure{res: &domain.ClusterResult{
		Threshold: 0.9,
		Clusters:  []domain.Cluster{{ID: "cluster-0001", ChunkIDs: []string{"a"}, Pages: []int{1}}},
	}}
	s := newServer(t, Ports{Structure: structure})

	code, body := do(t, s, http.MethodPost, "/v1/structure", `{"threshold": 0.9}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0.9, structure.threshold)
	assert.Len(t, body["clusters"], 1)

	code, _ = do(t, s, http.MethodPost, "/v1/structure", "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = do(t, s, http.MethodPost, "/v1/structure", `{"threshold": 1.5}`)
	assert.Equal(t, http.StatusBadRequest, code)

	empty := newServer(t, Ports{Structure: &mockStructure{res: &domain.ClusterResult{InsufficientContent: true}}})
	code, _ = do(t, empty, http.MethodPost, "/v1/structure", `{}`)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDocuments(t *testing.T) {
	indexing := &mockIndexing{docs: []domain.Document{{ID: "a101", Filename: "A101.pdf"}}}
	s := newServer(t, Ports{Indexing: indexing})

	code, body := do(t, s, http.MethodGet, "/v1/documents", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1.0, body["count"])
	docs := body["documents"].([]any)
	assert.Equal(t, "A101.pdf", docs[0].(map[string]any)["filename"])

	code, _ = do(t, s, http.MethodDelete, "/v1/documents/a101", "")
	assert.Equal(t, http.StatusNoContent, code)
	assert.Equal(t, "a101", indexing.deleted)

	indexing.err = domain.ErrNotFound
	code, _ = do(t, s, http.MethodDelete, "/v1/documents/zzz", "")
	assert.Equal(t, http.StatusNotFound, code)
}
