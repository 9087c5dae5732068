package driven

import (
	"context"

	"github.com/custodia-labs/plancite/internal/core/domain"
)

// Reranker re-orders a fused candidate set with a higher-precision signal.
type Reranker interface {
	// Name identifies the reranker in logs.
	Name() string

	// Rerank returns the results in new order with updated Score values.
	// It must return a permutation of its input.
	Rerank(ctx context.Context, query string, results []domain.SearchResult) ([]domain.SearchResult, error)
}
