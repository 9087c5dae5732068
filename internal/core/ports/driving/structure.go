package driving

import (
	"context"

	"github.com/custodia-labs/plancite/internal/core/domain"
)

// StructureService groups a corpus into wiki-page candidates.
type StructureService interface {
	// Cluster groups the chunks of the given documents, or of every
	// document when documentIDs is empty. threshold <= 0 uses the default.
	Cluster(ctx context.Context, documentIDs []string, threshold float64) (*domain.ClusterResult, error)
}
