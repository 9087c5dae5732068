package driven

import (
	"context"

	"github.com/custodia-labs/plancite/internal/core/domain"
)

// VectorStore persists chunks with their vectors and answers
// nearest-neighbour queries.
type VectorStore interface {
	// Upsert inserts or replaces records by chunk id.
	// A vector whose length differs from Dimensions fails with
	// domain.ErrDimensionMismatch.
	Upsert(ctx context.Context, records []domain.VectorRecord) error

	// Search returns up to k chunks by descending cosine similarity.
	Search(ctx context.Context, query []float32, k int, filter domain.MetadataFilter) ([]VectorHit, error)

	// Vectors returns stored vectors keyed by chunk id.
	Vectors(ctx context.Context, filter domain.MetadataFilter) (map[string][]float32, error)

	// DeleteDocument removes every record of a document.
	DeleteDocument(ctx context.Context, documentID string) error

	// Dimensions returns the declared vector size.
	Dimensions() int

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Similarity is the raw cosine similarity in [-1,1].
	Similarity float64
}
