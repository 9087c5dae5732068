package mcp

import (
	"context"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driving"
)

type mockRetrievalService struct {
	resp  *domain.SearchResponse
	err   error
	query string
	opts  domain.SearchOptions
}

func (m *mockRetrievalService) Retrieve(_ context.Context, query string, opts domain.SearchOptions) (*domain.SearchResponse, error) {
	m.query = query
	m.opts = opts
	return m.resp, m.err
}

type mockAnswerService struct {
	answer *domain.Answer
	err    error
	opts   domain.AnswerOptions
}

func (m *mockAnswerService) Answer(_ context.Context, _ string, opts domain.AnswerOptions) (*domain.Answer, error) {
	m.opts = opts
	return m.answer, m.err
}

type mockHighlightService struct {
	err   error
	scale float64
}

func (m *mockHighlightService) Highlight(_ context.Context, chunkID string, scale float64) (*domain.Highlight, error) {
	m.scale = scale
	if m.err != nil {
		return nil, m.err
	}
	box := domain.NewBoundingBox(72, 700, 300, 720)
	return &domain.Highlight{
		ChunkID:    chunkID,
		DocumentID: "a101",
		PageNumber: 1,
		BBox:       box,
		PageHeight: 792,
		Scale:      scale,
		Rect:       domain.MapToRender(box, 792, scale),
	}, nil
}

type mockIndexingService struct {
	docs []domain.Document
	err  error
}

func (m *mockIndexingService) IndexDocument(context.Context, string, domain.SourcePDF, driving.IndexOptions) (*domain.IndexResult, error) {
	return nil, m.err
}

func (m *mockIndexingService) IndexBatch(context.Context, string, []domain.SourcePDF, driving.IndexOptions) []domain.IndexResult {
	return nil
}

func (m *mockIndexingService) DeleteDocument(context.Context, string) error {
	return m.err
}

func (m *mockIndexingService) ListDocuments(context.Context) ([]domain.Document, error) {
	return m.docs, m.err
}
