package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
	"github.com/custodia-labs/plancite/internal/logger"
)

// Partitioner splits a PDF into positioned elements, page by page.
type Partitioner struct {
	inspector    driven.PDFInspector
	extractors   map[domain.ExtractionMethod]driven.PageExtractor
	strategy     domain.ExtractionStrategy
	maxFallbacks int
	metrics      driven.PipelineMetrics
}

// NewPartitioner creates a partitioner. Extractors are keyed by their
// Method; the OCR extractor is optional unless the strategy is ocr.
func NewPartitioner(
	inspector driven.PDFInspector,
	settings domain.ExtractionSettings,
	metrics driven.PipelineMetrics,
	extractors ...driven.PageExtractor,
) (*Partitioner, error) {
	if inspector == nil {
		return nil, fmt.Errorf("%w: pdf inspector is required", domain.ErrInvalidInput)
	}
	strategy := settings.Strategy
	if strategy == "" {
		strategy = domain.StrategyAuto
	}
	if !strategy.IsValid() {
		return nil, fmt.Errorf("%w: unknown extraction strategy %q", domain.ErrInvalidInput, strategy)
	}

	p := &Partitioner{
		inspector:    inspector,
		extractors:   make(map[domain.ExtractionMethod]driven.PageExtractor, len(extractors)),
		strategy:     strategy,
		maxFallbacks: max(settings.MaxFallbacks, 0),
		metrics:      metricsOrNop(metrics),
	}
	for _, e := range extractors {
		if e != nil {
			p.extractors[e.Method()] = e
		}
	}

	if _, ok := p.extractors[p.primary()]; !ok {
		if strategy == domain.StrategyOCR {
			return nil, fmt.Errorf("ocr strategy: %w", domain.ErrOCRUnavailable)
		}
		return nil, fmt.Errorf("%w: no %s extractor configured", domain.ErrInvalidInput, p.primary())
	}
	return p, nil
}

// Strategy returns the configured extraction strategy.
func (p *Partitioner) Strategy() domain.ExtractionStrategy {
	return p.strategy
}

func (p *Partitioner) primary() domain.ExtractionMethod {
	if p.strategy == domain.StrategyOCR {
		return domain.MethodOCR
	}
	return domain.MethodNative
}

// Partition extracts every page of pdf. Page failures are contained in
// the result; only inspector errors and cancellation abort the call.
func (p *Partitioner) Partition(ctx context.Context, pdf *domain.SourcePDF) (*domain.PartitionResult, error) {
	logger.Section("Partition")
	start := time.Now()
	defer func() { p.metrics.ObserveStage("partition", time.Since(start)) }()

	pages, err := p.inspector.PageSizes(ctx, pdf.Data)
	if err != nil {
		return nil, fmt.Errorf("read page geometry: %w", err)
	}
	logger.Debug("Document %s: %d pages, strategy %s", pdf.DocumentID, len(pages), p.strategy)

	result := &domain.PartitionResult{Pages: pages}
	for i := range pages {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		page := i + 1

		elements, failure := p.extractPage(ctx, pdf, page)
		if failure != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			logger.Warn("Page %d of %s excluded: %v", page, pdf.DocumentID, failure)
			result.Failures = append(result.Failures, *failure)
			p.metrics.AddPages("failed", 1)
			continue
		}

		if len(elements) == 0 {
			logger.Debug("Page %d is blank", page)
			p.metrics.AddPages("blank", 1)
			continue
		}
		p.metrics.AddPages("extracted", 1)

		size := pages[i]
		for ord := range elements {
			e := &elements[ord]
			e.PageNumber = page
			// Text-layer boxes are raw user space; store them relative to
			// the MediaBox corner like OCR boxes.
			if e.Method == domain.MethodNative && (size.OriginX != 0 || size.OriginY != 0) {
				e.BBox = e.BBox.Translate(-size.OriginX, -size.OriginY)
			}
			if e.ID == "" {
				e.ID = domain.ElementID(pdf.DocumentID, page, ord)
			}
			if !e.BBox.Valid() {
				e.InvalidBBox = true
				logger.Warn("Element %s has invalid bbox %s", e.ID, e.BBox)
			}
		}
		result.Elements = append(result.Elements, elements...)
	}

	logger.Info("Partitioned %s: %d elements, %d failed pages", pdf.DocumentID, len(result.Elements), len(result.Failures))
	return result, nil
}

// extractPage runs the primary strategy and, on error, the alternate
// strategy up to maxFallbacks times. Under auto, a page with no text
// layer is handed to OCR when it is configured.
func (p *Partitioner) extractPage(
	ctx context.Context, pdf *domain.SourcePDF, page int,
) ([]domain.Element, *domain.ExtractionFailure) {
	method := p.primary()
	tried := []domain.ExtractionMethod{method}
	elements, err := p.extractors[method].ExtractPage(ctx, pdf, page)

	if err == nil && len(elements) == 0 && p.strategy == domain.StrategyAuto {
		if ocr, ok := p.extractors[domain.MethodOCR]; ok {
			logger.Debug("Page %d has no text layer, trying OCR", page)
			tried = append(tried, domain.MethodOCR)
			elements, err = ocr.ExtractPage(ctx, pdf, page)
			method = domain.MethodOCR
		}
	}

	for attempt := 0; err != nil && attempt < p.maxFallbacks && ctx.Err() == nil; attempt++ {
		alt := method.Alternate()
		ext, ok := p.extractors[alt]
		if !ok {
			break
		}
		logger.Debug("Page %d failed with %s (%v), retrying with %s", page, method, err, alt)
		method = alt
		tried = append(tried, alt)
		elements, err = ext.ExtractPage(ctx, pdf, page)
	}

	if err != nil {
		return nil, &domain.ExtractionFailure{Page: page, Methods: tried, Err: err}
	}
	return elements, nil
}
