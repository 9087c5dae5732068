package driven

import (
	"context"

	"github.com/custodia-labs/plancite/internal/core/domain"
)

// KeywordIndex provides lexical search over chunk text.
type KeywordIndex interface {
	// Index adds or replaces chunks by chunk id.
	Index(ctx context.Context, chunks []domain.Chunk) error

	// Search returns up to k chunks by descending relevance.
	// Scores are unbounded; higher is better.
	Search(ctx context.Context, query string, k int, filter domain.MetadataFilter) ([]KeywordHit, error)

	// DeleteDocument removes every chunk of a document.
	DeleteDocument(ctx context.Context, documentID string) error

	// Close releases resources.
	Close() error
}

// KeywordHit represents a lexical search result.
type KeywordHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Score is the relevance score (e.g., BM25).
	Score float64
}
