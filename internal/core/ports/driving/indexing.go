package driving

import (
	"context"

	"github.com/custodia-labs/plancite/internal/core/domain"
)

// IndexOptions configures an indexing call.
type IndexOptions struct {
	// Force re-indexes documents whose content hash is unchanged.
	Force bool
}

// IndexingService runs the partition, chunk, embed and store pipeline.
type IndexingService interface {
	// IndexDocument indexes one PDF under the caller's run id.
	// Stage-local failures are warnings on the result. The error is set
	// only for run-level failures.
	IndexDocument(ctx context.Context, runID string, pdf domain.SourcePDF, opts IndexOptions) (*domain.IndexResult, error)

	// IndexBatch indexes documents concurrently. Results follow input order.
	IndexBatch(ctx context.Context, runID string, pdfs []domain.SourcePDF, opts IndexOptions) []domain.IndexResult

	// DeleteDocument removes a document from every store.
	DeleteDocument(ctx context.Context, documentID string) error

	// ListDocuments returns the document registry.
	ListDocuments(ctx context.Context) ([]domain.Document, error)
}
