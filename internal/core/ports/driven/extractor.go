package driven

import (
	"context"

	"github.com/custodia-labs/plancite/internal/core/domain"
)

// PageExtractor turns one PDF page into ordered elements.
// Every implementation returns bboxes in page points with a bottom-left
// origin, so callers never need to know which strategy ran.
type PageExtractor interface {
	// Method identifies the extraction strategy.
	Method() domain.ExtractionMethod

	// ExtractPage extracts a 1-based page. A blank page returns no
	// elements and no error.
	ExtractPage(ctx context.Context, pdf *domain.SourcePDF, page int) ([]domain.Element, error)
}

// PDFInspector reads document-level PDF structure.
type PDFInspector interface {
	// PageSizes returns every page's unrotated MediaBox size in points with
	// its origin and /Rotate, index 0 is page 1.
	PageSizes(ctx context.Context, pdf []byte) ([]domain.PageSize, error)

	// ExtractPage returns a standalone single-page PDF for a 1-based page.
	ExtractPage(ctx context.Context, pdf []byte, page int) ([]byte, error)
}

// RasterOrigin names the corner a raster's pixel coordinates start from.
type RasterOrigin string

// Raster origins.
const (
	OriginTopLeft    RasterOrigin = "top-left"
	OriginBottomLeft RasterOrigin = "bottom-left"
)

// OCRBlock is one recognised region in raster pixel space.
type OCRBlock struct {
	Text       string
	Category   string
	BBox       domain.BoundingBox
	Confidence float64
}

// OCRPage is an OCR engine's result for one rasterised page.
type OCRPage struct {
	// Raster is the pixel size of the image the engine read.
	Raster domain.PixelSize

	// Origin is the corner the block coordinates are measured from.
	Origin RasterOrigin

	// Blocks are in reading order.
	Blocks []OCRBlock
}

// OCREngine recognises text on a single-page PDF.
// Returned coordinates are raw raster pixels; callers rescale them.
type OCREngine interface {
	// Recognize rasterises and reads the page.
	Recognize(ctx context.Context, pagePDF []byte) (*OCRPage, error)

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error
}
