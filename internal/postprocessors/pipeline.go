// Package postprocessors turns partitioned elements into indexed chunks.
package postprocessors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
	"github.com/custodia-labs/plancite/internal/logger"
)

var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline runs stages in order. The first stage receives no chunks and
// builds them from elements; later stages refine them.
type Pipeline struct {
	stages []driven.PostProcessor
}

// NewPipeline creates a pipeline from stages in execution order.
func NewPipeline(stages ...driven.PostProcessor) *Pipeline {
	return &Pipeline{stages: stages}
}

// Process runs every stage, then checks the chunks still carry a usable
// citation: the source's document id, a stable id matching their
// ordinal, contiguous ordinals from zero and a page number.
func (p *Pipeline) Process(ctx context.Context, src *domain.SourcePDF, elements []domain.Element) ([]domain.Chunk, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: source is nil", domain.ErrInvalidInput)
	}

	var chunks []domain.Chunk
	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		var err error
		chunks, err = stage.Process(ctx, src, elements, chunks)
		if err != nil {
			return nil, fmt.Errorf("processor %s: %w", stage.Name(), err)
		}
		logger.Debug("postprocess %s: %s produced %d chunks in %s", src.DocumentID, stage.Name(), len(chunks), time.Since(start))
	}

	if err := checkCitable(src.DocumentID, chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

func checkCitable(documentID string, chunks []domain.Chunk) error {
	var errs []error
	for i, c := range chunks {
		switch {
		case c.DocumentID != documentID:
			errs = append(errs, fmt.Errorf("chunk %d: document %q, want %q", i, c.DocumentID, documentID))
		case c.Ordinal != i:
			errs = append(errs, fmt.Errorf("chunk %d: ordinal %d out of sequence", i, c.Ordinal))
		case c.ID != domain.ChunkID(documentID, c.Ordinal):
			errs = append(errs, fmt.Errorf("chunk %d: id does not match ordinal", i))
		case c.PageNumber < 1:
			errs = append(errs, fmt.Errorf("chunk %d: page %d", i, c.PageNumber))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}

// Stages returns the stage names in execution order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}
