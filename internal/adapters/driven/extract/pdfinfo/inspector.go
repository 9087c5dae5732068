// Package pdfinfo reads page geometry and splits pages with pdfcpu.
package pdfinfo

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
)

var _ driven.PDFInspector = (*Inspector)(nil)

// Inspector implements driven.PDFInspector.
type Inspector struct {
	conf *model.Configuration
}

// New creates an inspector with relaxed validation, since scanned and
// CAD-exported drawings often carry minor structural defects.
func New() *Inspector {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Inspector{conf: conf}
}

// PageSizes returns each page's unrotated MediaBox in points together with
// its lower-left origin and effective /Rotate. Widths and heights are never
// swapped for rotated pages; element boxes live in the same unrotated space.
func (i *Inspector) PageSizes(ctx context.Context, pdf []byte) ([]domain.PageSize, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("%w: empty pdf", domain.ErrInvalidInput)
	}
	pctx, err := api.ReadAndValidate(bytes.NewReader(pdf), i.conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu: read: %w", err)
	}
	bounds, err := pctx.PageBoundaries(nil)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu: page boundaries: %w", err)
	}
	if len(bounds) != pctx.PageCount {
		return nil, fmt.Errorf("pdfcpu: %d page boundaries for %d pages", len(bounds), pctx.PageCount)
	}
	out := make([]domain.PageSize, len(bounds))
	for n, pb := range bounds {
		mb := pb.MediaBox()
		if mb == nil {
			return nil, fmt.Errorf("pdfcpu: page %d has no media box", n+1)
		}
		out[n] = domain.PageSize{
			Width:    mb.Width(),
			Height:   mb.Height(),
			OriginX:  mb.LL.X,
			OriginY:  mb.LL.Y,
			Rotation: domain.NormalizeRotation(pb.Rot),
		}
	}
	return out, nil
}

// ExtractPage writes page (1-based) as a standalone PDF.
func (i *Inspector) ExtractPage(ctx context.Context, pdf []byte, page int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	count, err := api.PageCount(bytes.NewReader(pdf), i.conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu: page count: %w", err)
	}
	if page < 1 || page > count {
		return nil, fmt.Errorf("%w: page %d outside 1..%d", domain.ErrInvalidInput, page, count)
	}

	var out bytes.Buffer
	if err := api.Trim(bytes.NewReader(pdf), &out, []string{strconv.Itoa(page)}, i.conf); err != nil {
		return nil, fmt.Errorf("pdfcpu: extract page %d: %w", page, err)
	}
	return out.Bytes(), nil
}
