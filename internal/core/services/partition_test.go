package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
)

type stubInspector struct {
	pages []domain.PageSize
	err   error
}

func (s stubInspector) PageSizes(context.Context, []byte) ([]domain.PageSize, error) {
	return s.pages, s.err
}

func (s stubInspector) ExtractPage(context.Context, []byte, int) ([]byte, error) {
	return []byte("%PDF-1.7"), nil
}

// stubExtractor returns per-page elements or errors.
type stubExtractor struct {
	method   domain.ExtractionMethod
	elements map[int][]domain.Element
	errs     map[int]error
	calls    []int
}

func (s *stubExtractor) Method() domain.ExtractionMethod { return s.method }

func (s *stubExtractor) ExtractPage(_ context.Context, _ *domain.SourcePDF, page int) ([]domain.Element, error) {
	s.calls = append(s.calls, page)
	if err := s.errs[page]; err != nil {
		return nil, err
	}
	src := s.elements[page]
	out := make([]domain.Element, len(src))
	copy(out, src)
	return out, nil
}

func textElement(text string, box domain.BoundingBox, m domain.ExtractionMethod) domain.Element {
	return domain.Element{Category: domain.CategoryText, Text: text, BBox: box, Method: m}
}

func letterPages(n int) []domain.PageSize {
	out := make([]domain.PageSize, n)
	for i := range out {
		out[i] = domain.PageSize{Width: 612, Height: 792}
	}
	return out
}

var _ driven.PageExtractor = (*stubExtractor)(nil)

func TestPartitioner_NativePages(t *testing.T) {
	native := &stubExtractor{method: domain.MethodNative, elements: map[int][]domain.Element{
		1: {textElement("General notes", domain.NewBoundingBox(72, 700, 300, 720), domain.MethodNative)},
		2: {textElement("Door schedule", domain.NewBoundingBox(72, 600, 300, 620), domain.MethodNative)},
	}}
	p, err := NewPartitioner(stubInspector{pages: letterPages(2)}, domain.ExtractionSettings{Strategy: domain.StrategyNative}, nil, native)
	require.NoError(t, err)

	res, err := p.Partition(context.Background(), &domain.SourcePDF{DocumentID: "doc", Data: []byte("x")})
	require.NoError(t, err)
	require.Len(t, res.Elements, 2)
	assert.Equal(t, 1, res.Elements[0].PageNumber)
	assert.Equal(t, "doc:p1:e0", res.Elements[0].ID)
	assert.Equal(t, 2, res.Elements[1].PageNumber)
	assert.Len(t, res.Pages, 2)
	assert.Empty(t, res.Failures)
}

func TestPartitioner_NativeBoxesRelativeToMediaBoxOrigin(t *testing.T) {
	native := &stubExtractor{method: domain.MethodNative, elements: map[int][]domain.Element{
		1: {textElement("Keynotes", domain.NewBoundingBox(90, 736, 300, 756), domain.MethodNative)},
	}}
	ocr := &stubExtractor{method: domain.MethodOCR, elements: map[int][]domain.Element{
		2: {textElement("Stamp", domain.NewBoundingBox(10, 10, 50, 30), domain.MethodOCR)},
	}}
	pages := []domain.PageSize{
		{Width: 612, Height: 792, OriginX: 18, OriginY: 36, Rotation: 90},
		{Width: 612, Height: 792, OriginX: 18, OriginY: 36},
	}
	p, err := NewPartitioner(stubInspector{pages: pages}, domain.ExtractionSettings{Strategy: domain.StrategyAuto}, nil, native, ocr)
	require.NoError(t, err)

	res, err := p.Partition(context.Background(), &domain.SourcePDF{DocumentID: "doc"})
	require.NoError(t, err)
	require.Len(t, res.Elements, 2)
	assert.Equal(t, domain.NewBoundingBox(72, 700, 282, 720), res.Elements[0].BBox)
	assert.Equal(t, domain.NewBoundingBox(10, 10, 50, 30), res.Elements[1].BBox)
	assert.Equal(t, pages, res.Pages)
}

func TestPartitioner_BlankPageIsNotAnError(t *testing.T) {
	native := &stubExtractor{method: domain.MethodNative, elements: map[int][]domain.Element{
		2: {textElement("Sheet A-101", domain.NewBoundingBox(10, 10, 20, 20), domain.MethodNative)},
	}}
	p, err := NewPartitioner(stubInspector{pages: letterPages(3)}, domain.ExtractionSettings{Strategy: domain.StrategyNative}, nil, native)
	require.NoError(t, err)

	res, err := p.Partition(context.Background(), &domain.SourcePDF{DocumentID: "doc"})
	require.NoError(t, err)
	assert.Len(t, res.Elements, 1)
	assert.Empty(t, res.Failures)
}

func TestPartitioner_AutoUsesOCRForPagesWithoutTextLayer(t *testing.T) {
	native := &stubExtractor{method: domain.MethodNative, elements: map[int][]domain.Element{
		1: {textElement("typed", domain.NewBoundingBox(1, 1, 2, 2), domain.MethodNative)},
	}}
	ocr := &stubExtractor{method: domain.MethodOCR, elements: map[int][]domain.Element{
		2: {textElement("scanned", domain.NewBoundingBox(36, 36, 72, 72), domain.MethodOCR)},
	}}
	p, err := NewPartitioner(stubInspector{pages: letterPages(2)}, domain.ExtractionSettings{Strategy: domain.StrategyAuto}, nil, native, ocr)
	require.NoError(t, err)

	res, err := p.Partition(context.Background(), &domain.SourcePDF{DocumentID: "doc"})
	require.NoError(t, err)
	require.Len(t, res.Elements, 2)
	assert.Equal(t, domain.MethodOCR, res.Elements[1].Method)
	assert.Equal(t, []int{2}, ocr.calls)
}

func TestPartitioner_FallbackThenFailure(t *testing.T) {
	native := &stubExtractor{
		method:   domain.MethodNative,
		elements: map[int][]domain.Element{1: {textElement("ok", domain.NewBoundingBox(1, 1, 2, 2), domain.MethodNative)}},
		errs:     map[int]error{2: errors.New("corrupt content stream"), 3: errors.New("corrupt content stream")},
	}
	ocr := &stubExtractor{
		method:   domain.MethodOCR,
		elements: map[int][]domain.Element{2: {textElement("recovered", domain.NewBoundingBox(1, 1, 2, 2), domain.MethodOCR)}},
		errs:     map[int]error{3: errors.New("ocr timeout")},
	}
	p, err := NewPartitioner(stubInspector{pages: letterPages(3)},
		domain.ExtractionSettings{Strategy: domain.StrategyNative, MaxFallbacks: 1}, nil, native, ocr)
	require.NoError(t, err)

	res, err := p.Partition(context.Background(), &domain.SourcePDF{DocumentID: "doc"})
	require.NoError(t, err)
	require.Len(t, res.Elements, 2)
	assert.Equal(t, "recovered", res.Elements[1].Text)

	require.Len(t, res.Failures, 1)
	assert.Equal(t, 3, res.Failures[0].Page)
	assert.Equal(t, []domain.ExtractionMethod{domain.MethodNative, domain.MethodOCR}, res.Failures[0].Methods)
}

func TestPartitioner_NoFallbacksConfigured(t *testing.T) {
	native := &stubExtractor{method: domain.MethodNative, errs: map[int]error{1: errors.New("bad")}}
	ocr := &stubExtractor{method: domain.MethodOCR}
	p, err := NewPartitioner(stubInspector{pages: letterPages(1)},
		domain.ExtractionSettings{Strategy: domain.StrategyNative, MaxFallbacks: 0}, nil, native, ocr)
	require.NoError(t, err)

	res, err := p.Partition(context.Background(), &domain.SourcePDF{DocumentID: "doc"})
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	assert.Empty(t, ocr.calls)
}

func TestPartitioner_FlagsInvalidBBoxWithoutCorrecting(t *testing.T) {
	bad := domain.BoundingBox{X0: 300, Y0: 700, X1: 72, Y1: 720}
	native := &stubExtractor{method: domain.MethodNative, elements: map[int][]domain.Element{
		1: {textElement("inverted", bad, domain.MethodNative)},
	}}
	p, err := NewPartitioner(stubInspector{pages: letterPages(1)}, domain.ExtractionSettings{}, nil, native)
	require.NoError(t, err)

	res, err := p.Partition(context.Background(), &domain.SourcePDF{DocumentID: "doc"})
	require.NoError(t, err)
	require.Len(t, res.Elements, 1)
	assert.True(t, res.Elements[0].InvalidBBox)
	assert.Equal(t, bad, res.Elements[0].BBox)
}

func TestPartitioner_ConstructorErrors(t *testing.T) {
	native := &stubExtractor{method: domain.MethodNative}

	_, err := NewPartitioner(stubInspector{}, domain.ExtractionSettings{Strategy: domain.StrategyOCR}, nil, native)
	assert.ErrorIs(t, err, domain.ErrOCRUnavailable)

	_, err = NewPartitioner(stubInspector{}, domain.ExtractionSettings{Strategy: "magic"}, nil, native)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = NewPartitioner(nil, domain.ExtractionSettings{}, nil, native)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPartitioner_InspectorErrorAborts(t *testing.T) {
	native := &stubExtractor{method: domain.MethodNative}
	p, err := NewPartitioner(stubInspector{err: errors.New("not a pdf")}, domain.ExtractionSettings{}, nil, native)
	require.NoError(t, err)

	_, err = p.Partition(context.Background(), &domain.SourcePDF{DocumentID: "doc"})
	assert.ErrorContains(t, err, "not a pdf")
}

func TestPartitioner_Cancelled(t *testing.T) {
	native := &stubExtractor{method: domain.MethodNative}
	p, err := NewPartitioner(stubInspector{pages: letterPages(5)}, domain.ExtractionSettings{}, nil, native)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Partition(ctx, &domain.SourcePDF{DocumentID: "doc"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, native.calls)
}
