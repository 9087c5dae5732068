package driving

import (
	"context"

	"github.com/custodia-labs/plancite/internal/core/domain"
)

// HighlightService maps stored chunk positions onto renderer rectangles.
type HighlightService interface {
	// Highlight returns the render rect of a chunk at the given scale.
	Highlight(ctx context.Context, chunkID string, renderScale float64) (*domain.Highlight, error)
}
