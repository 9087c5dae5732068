// Package ocr adapts an OCR engine into a page extractor that returns
// point-space, bottom-left boxes.
package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
	"github.com/custodia-labs/plancite/internal/logger"
)

var _ driven.PageExtractor = (*OCRExtractor)(nil)

// OCRExtractor sends single pages to an engine and rescales its pixel
// boxes onto the page.
type OCRExtractor struct {
	inspector driven.PDFInspector
	engine    driven.OCREngine
}

// New creates an OCR extractor.
func New(inspector driven.PDFInspector, engine driven.OCREngine) (*OCRExtractor, error) {
	if inspector == nil {
		return nil, fmt.Errorf("%w: pdf inspector is required", domain.ErrInvalidInput)
	}
	if engine == nil {
		return nil, domain.ErrOCRUnavailable
	}
	return &OCRExtractor{inspector: inspector, engine: engine}, nil
}

// Method implements driven.PageExtractor.
func (e *OCRExtractor) Method() domain.ExtractionMethod {
	return domain.MethodOCR
}

// ExtractPage implements driven.PageExtractor.
func (e *OCRExtractor) ExtractPage(ctx context.Context, src *domain.SourcePDF, page int) ([]domain.Element, error) {
	single, err := e.inspector.ExtractPage(ctx, src.Data, page)
	if err != nil {
		return nil, fmt.Errorf("ocr: isolate page %d: %w", page, err)
	}
	sizes, err := e.inspector.PageSizes(ctx, single)
	if err != nil {
		return nil, fmt.Errorf("ocr: page %d geometry: %w", page, err)
	}
	if len(sizes) != 1 {
		return nil, fmt.Errorf("ocr: isolated page %d has %d pages", page, len(sizes))
	}
	size := sizes[0]

	res, err := e.engine.Recognize(ctx, single)
	if err != nil {
		return nil, fmt.Errorf("ocr: recognise page %d: %w", page, err)
	}
	return toElements(res, size)
}

// toElements maps engine blocks into page points. Engines see the page as
// displayed, so boxes are scaled and flipped against the displayed size
// and then turned back into unrotated page space.
func toElements(res *driven.OCRPage, size domain.PageSize) ([]domain.Element, error) {
	if res == nil || len(res.Blocks) == 0 {
		return nil, nil
	}
	flip := res.Origin != driven.OriginBottomLeft
	shown := size.Displayed()

	elements := make([]domain.Element, 0, len(res.Blocks))
	for _, blk := range res.Blocks {
		category := domain.ParseElementCategory(blk.Category)
		text := strings.TrimSpace(blk.Text)
		if text == "" && category != domain.CategoryImage {
			continue
		}
		box, err := domain.PixelToPoint(blk.BBox, res.Raster, shown)
		if err != nil {
			return nil, fmt.Errorf("ocr: %w", err)
		}
		if flip {
			box = domain.FlipVertical(box, shown.Height)
		}
		box = domain.DisplayedToPage(box, size)
		elements = append(elements, domain.Element{
			Category: category,
			Text:     text,
			BBox:     box,
			Method:   domain.MethodOCR,
		})
	}
	logger.Debug("ocr: %d blocks, %d elements, raster %vx%v onto %vx%vpt rotated %d",
		len(res.Blocks), len(elements), res.Raster.Width, res.Raster.Height, shown.Width, shown.Height, size.Rotation)
	return elements, nil
}
