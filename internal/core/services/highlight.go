package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
	"github.com/custodia-labs/plancite/internal/core/ports/driving"
)

// Ensure HighlightService implements the interface.
var _ driving.HighlightService = (*HighlightService)(nil)

// HighlightService maps a stored chunk bbox onto a rendered page.
type HighlightService struct {
	docStore driven.DocumentStore
}

// NewHighlightService creates a highlight service.
func NewHighlightService(docStore driven.DocumentStore) *HighlightService {
	return &HighlightService{docStore: docStore}
}

// Highlight resolves chunkID to its page and returns the render rect at
// renderScale. The rect is in unrotated page space; viewers that honour
// /Rotate apply Rotation on top. Flagged boxes are mapped as stored and
// marked Invalid.
func (s *HighlightService) Highlight(ctx context.Context, chunkID string, renderScale float64) (*domain.Highlight, error) {
	if chunkID == "" {
		return nil, fmt.Errorf("%w: chunk id is required", domain.ErrInvalidInput)
	}
	if renderScale <= 0 {
		return nil, fmt.Errorf("%w: render scale must be positive, got %g", domain.ErrInvalidInput, renderScale)
	}

	chunk, err := s.docStore.GetChunk(ctx, chunkID)
	if err != nil {
		return nil, fmt.Errorf("get chunk %s: %w", chunkID, err)
	}
	doc, err := s.docStore.GetDocument(ctx, chunk.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("document %s of chunk %s: %w", chunk.DocumentID, chunkID, err)
	}

	size, ok := doc.Page(chunk.PageNumber)
	if !ok || size.Height <= 0 {
		return nil, fmt.Errorf("%w: no page size for page %d of %s", domain.ErrInvalidInput, chunk.PageNumber, doc.ID)
	}

	return &domain.Highlight{
		ChunkID:    chunk.ID,
		DocumentID: chunk.DocumentID,
		PageNumber: chunk.PageNumber,
		BBox:       chunk.BBox,
		PageHeight: size.Height,
		Rotation:   size.Rotation,
		Scale:      renderScale,
		Rect:       domain.MapToRender(chunk.BBox, size.Height, renderScale),
		Invalid:    chunk.Metadata.BBoxInvalid || !chunk.BBox.Valid(),
	}, nil
}
