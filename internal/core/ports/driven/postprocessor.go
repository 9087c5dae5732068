package driven

import (
	"context"

	"github.com/custodia-labs/plancite/internal/core/domain"
)

// PostProcessor turns partitioned elements into chunks, or refines chunks.
// PostProcessors are chained in a pipeline (chunking, then metadata checks).
type PostProcessor interface {
	// Name returns the processor name for logging.
	Name() string

	// Process receives the document's elements and the chunks produced so far.
	// The first processor receives nil chunks and creates them from elements.
	Process(ctx context.Context, src *domain.SourcePDF, elements []domain.Element, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the elements through all processors in order and
	// returns the final chunks.
	Process(ctx context.Context, src *domain.SourcePDF, elements []domain.Element) ([]domain.Chunk, error)
}
