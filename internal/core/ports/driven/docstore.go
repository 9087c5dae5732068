package driven

import (
	"context"

	"github.com/custodia-labs/plancite/internal/core/domain"
)

// DocumentStore persists the document registry, chunks and run records.
// Backed by SQLite for metadata storage.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// ListDocuments returns all documents ordered by ID.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// DeleteDocument removes a document and its chunks.
	DeleteDocument(ctx context.Context, id string) error

	// SaveChunks replaces all chunks of a document.
	SaveChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error

	// GetChunk retrieves a specific chunk by ID.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// GetChunksByID returns the chunks that exist among ids, keyed by id.
	GetChunksByID(ctx context.Context, ids []string) (map[string]domain.Chunk, error)

	// ListChunks returns matching chunks ordered by ID.
	ListChunks(ctx context.Context, filter domain.MetadataFilter) ([]domain.Chunk, error)

	// CountChunks returns the number of stored chunks.
	CountChunks(ctx context.Context) (int, error)

	// SaveRun records the outcome of one document's indexing run.
	SaveRun(ctx context.Context, result *domain.IndexResult) error

	// Close releases resources.
	Close() error
}
