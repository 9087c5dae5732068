// Package metadata checks chunk metadata against the versioned schema
// before chunks reach the indices.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
)

var _ driven.PostProcessor = (*Processor)(nil)

// Processor validates chunk metadata and normalises chunk content.
type Processor struct{}

// New creates a metadata processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "metadata"
}

// Process rejects chunks whose metadata is incomplete or whose page and
// bbox disagree with the chunk's own. Invalid geometry is flagged, never
// corrected. Horizontal whitespace inside each line is collapsed.
func (p *Processor) Process(
	_ context.Context, _ *domain.SourcePDF, _ []domain.Element, chunks []domain.Chunk,
) ([]domain.Chunk, error) {
	var errs []error

	for i := range chunks {
		c := &chunks[i]
		c.Content = collapseSpaces(c.Content)

		if !c.BBox.Valid() {
			c.Metadata.BBoxInvalid = true
		}
		if c.Metadata.PageNumber != c.PageNumber || c.Metadata.BBox != c.BBox {
			errs = append(errs, fmt.Errorf("chunk %d: metadata page/bbox out of sync", c.Ordinal))
			continue
		}
		if err := c.Metadata.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("chunk %d: %w", c.Ordinal, err))
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return chunks, nil
}

func collapseSpaces(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.Join(lines, "\n")
}
