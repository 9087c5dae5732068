package driving

import (
	"context"

	"github.com/custodia-labs/plancite/internal/core/domain"
)

// RetrievalService provides hybrid search to external actors.
type RetrievalService interface {
	// Retrieve returns the top-k chunks for a query.
	// It fails with domain.ErrRetrievalUnavailable when both indices or the
	// document store are down and domain.ErrNoIndexedContent when the
	// corpus is empty.
	Retrieve(ctx context.Context, query string, opts domain.SearchOptions) (*domain.SearchResponse, error)
}
