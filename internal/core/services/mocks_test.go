package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
)

// mockKeywordIndex implements driven.KeywordIndex for testing.
type mockKeywordIndex struct {
	hits      []driven.KeywordHit
	searchErr error
	indexErr  error
	delay     time.Duration

	mu      sync.Mutex
	indexed []domain.Chunk
	deleted []string
}

func (m *mockKeywordIndex) Index(_ context.Context, chunks []domain.Chunk) error {
	if m.indexErr != nil {
		return m.indexErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexed = append(m.indexed, chunks...)
	return nil
}

func (m *mockKeywordIndex) Search(ctx context.Context, _ string, k int, _ domain.MetadataFilter) ([]driven.KeywordHit, error) {
	if err := wait(ctx, m.delay); err != nil {
		return nil, err
	}
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if k > len(m.hits) {
		return m.hits, nil
	}
	return m.hits[:k], nil
}

func (m *mockKeywordIndex) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockKeywordIndex) Close() error { return nil }

// mockVectorStore implements driven.VectorStore for testing.
type mockVectorStore struct {
	hits      []driven.VectorHit
	vectors   map[string][]float32
	searchErr error
	upsertErr error
	delay     time.Duration
	dims      int

	mu       sync.Mutex
	upserted []domain.VectorRecord
}

func (m *mockVectorStore) Upsert(_ context.Context, records []domain.VectorRecord) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserted = append(m.upserted, records...)
	return nil
}

func (m *mockVectorStore) Search(ctx context.Context, _ []float32, k int, _ domain.MetadataFilter) ([]driven.VectorHit, error) {
	if err := wait(ctx, m.delay); err != nil {
		return nil, err
	}
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if k > len(m.hits) {
		return m.hits, nil
	}
	return m.hits[:k], nil
}

func (m *mockVectorStore) Vectors(_ context.Context, _ domain.MetadataFilter) (map[string][]float32, error) {
	return m.vectors, nil
}

func (m *mockVectorStore) DeleteDocument(_ context.Context, _ string) error { return nil }

func (m *mockVectorStore) Dimensions() int {
	if m.dims > 0 {
		return m.dims
	}
	return 3
}

func (m *mockVectorStore) Close() error { return nil }

// mockEmbeddingService implements driven.EmbeddingService for testing.
// batchFn, when set, decides each EmbedBatch call's outcome.
type mockEmbeddingService struct {
	embedding []float32
	embedErr  error
	dims      int
	batchFn   func(call int, texts []string) ([][]float32, error)

	mu    sync.Mutex
	calls int
}

func (m *mockEmbeddingService) Embed(_ context.Context, _ string) ([]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.embedding, nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.mu.Unlock()

	if m.batchFn != nil {
		return m.batchFn(call, texts)
	}
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = m.embedding
	}
	return result, nil
}

func (m *mockEmbeddingService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockEmbeddingService) Dimensions() int {
	if m.dims > 0 {
		return m.dims
	}
	return 3
}

func (m *mockEmbeddingService) Provider() string  { return "mock" }
func (m *mockEmbeddingService) ModelName() string { return "mock-embed" }

func (m *mockEmbeddingService) Ping(_ context.Context) error { return nil }

func (m *mockEmbeddingService) Close() error { return nil }

// mockLLMService implements driven.LLMService for testing.
type mockLLMService struct {
	response string
	err      error

	mu       sync.Mutex
	messages []driven.ChatMessage
}

func (m *mockLLMService) Chat(_ context.Context, messages []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	m.mu.Lock()
	m.messages = append(m.messages, messages...)
	m.mu.Unlock()
	return m.response, m.err
}

func (m *mockLLMService) ModelName() string { return "mock-llm" }

func (m *mockLLMService) Ping(_ context.Context) error { return nil }

func (m *mockLLMService) Close() error { return nil }

// reverseReranker reverses its input, or fails when err is set.
type reverseReranker struct{ err error }

func (r reverseReranker) Name() string { return "reverse" }

func (r reverseReranker) Rerank(_ context.Context, _ string, results []domain.SearchResult) ([]domain.SearchResult, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := make([]domain.SearchResult, len(results))
	for i := range results {
		out[len(results)-1-i] = results[i]
	}
	return out, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d == 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// testChunk builds a fully populated chunk on page 1 of docID.
func testChunk(docID string, ordinal int, content string) domain.Chunk {
	box := domain.NewBoundingBox(72, 700-float64(ordinal)*20, 300, 720-float64(ordinal)*20)
	return domain.Chunk{
		ID:         domain.ChunkID(docID, ordinal),
		DocumentID: docID,
		Ordinal:    ordinal,
		Content:    content,
		PageNumber: 1,
		BBox:       box,
		Metadata: domain.ChunkMetadata{
			SchemaVersion:    domain.MetadataSchemaVersion,
			SourceFilename:   docID + ".pdf",
			PageNumber:       1,
			BBox:             box,
			ElementCategory:  domain.CategoryText,
			ExtractionMethod: domain.MethodNative,
		},
	}
}

func chunkContents(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("chunk %d content", i)
	}
	return out
}
