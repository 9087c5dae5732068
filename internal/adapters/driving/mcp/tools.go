package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/plancite/internal/core/domain"
)

const (
	defaultTopK  = 10
	defaultScale = 1.0
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query         string   `json:"query" jsonschema:"the search query, e.g. a spec section or a detail callout"`
	TopK          int      `json:"top_k,omitempty" jsonschema:"maximum number of results (default 10)"`
	DocumentIDs   []string `json:"document_ids,omitempty" jsonschema:"restrict results to these documents"`
	PageNumber    int      `json:"page_number,omitempty" jsonschema:"restrict results to this 1-based page"`
	Category      string   `json:"category,omitempty" jsonschema:"restrict results to text, table, image or title elements"`
	VectorWeight  *float64 `json:"vector_weight,omitempty" jsonschema:"override the semantic fusion weight"`
	KeywordWeight *float64 `json:"keyword_weight,omitempty" jsonschema:"override the keyword fusion weight"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results  []SearchResultOutput `json:"results"`
	Count    int                  `json:"count"`
	Method   string               `json:"search_method"`
	Degraded []string             `json:"degraded,omitempty"`
}

// SearchResultOutput is one located chunk.
type SearchResultOutput struct {
	ChunkID         string     `json:"chunk_id"`
	DocumentID      string     `json:"document_id"`
	SourceFilename  string     `json:"source_filename"`
	PageNumber      int        `json:"page_number"`
	BBox            [4]float64 `json:"bbox"`
	Score           float64    `json:"score"`
	SimilarityScore float64    `json:"similarity_score"`
	KeywordScore    float64    `json:"keyword_score"`
	SectionTitle    string     `json:"section_title,omitempty"`
	Content         string     `json:"content"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question    string   `json:"question" jsonschema:"the question to answer from the indexed drawings and specs"`
	TopK        int      `json:"top_k,omitempty" jsonschema:"how many chunks to retrieve as context (default 8)"`
	DocumentIDs []string `json:"document_ids,omitempty" jsonschema:"restrict context to these documents"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer            string           `json:"answer"`
	Citations         []CitationOutput `json:"citations"`
	SearchMethod      string           `json:"search_method"`
	ResultsConsidered int              `json:"results_considered"`
	ResultsCited      int              `json:"results_cited"`
}

// CitationOutput locates one cited chunk.
type CitationOutput struct {
	ChunkID        string     `json:"chunk_id"`
	Confidence     float64    `json:"confidence"`
	PageNumber     int        `json:"page_number"`
	BBox           [4]float64 `json:"bbox"`
	SourceFilename string     `json:"source_filename,omitempty"`
	Snippet        string     `json:"content_snippet,omitempty"`
}

// HighlightInput is the input schema for the highlight tool.
type HighlightInput struct {
	ChunkID string  `json:"chunk_id" jsonschema:"the chunk to locate"`
	Scale   float64 `json:"scale,omitempty" jsonschema:"render scale of the page image (default 1.0)"`
}

// HighlightOutput is the output schema for the highlight tool.
type HighlightOutput struct {
	ChunkID    string            `json:"chunk_id"`
	DocumentID string            `json:"document_id"`
	PageNumber int               `json:"page_number"`
	BBox       [4]float64        `json:"bbox"`
	PageHeight float64           `json:"page_height_pt"`
	Scale      float64           `json:"render_scale"`
	Rect       domain.RenderRect `json:"rect"`
	Invalid    bool              `json:"bbox_invalid,omitempty"`
}

// registerTools registers the tools whose ports are configured.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Hybrid keyword and semantic search over indexed PDFs. Every result carries its page and bounding box.",
	}, s.handleSearch)

	if s.ports.Answer != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ask",
			Description: "Answer a question from the indexed PDFs with citations to page regions",
		}, s.handleAsk)
	}

	if s.ports.Highlight != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "highlight",
			Description: "Map a chunk's bounding box to a top-left rectangle on a rendered page",
		}, s.handleHighlight)
	}
}

func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	topK := input.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	opts := domain.SearchOptions{
		TopK: topK,
		Filter: domain.MetadataFilter{
			DocumentIDs: input.DocumentIDs,
			PageNumber:  input.PageNumber,
			Category:    domain.ElementCategory(input.Category),
		},
	}
	if input.VectorWeight != nil || input.KeywordWeight != nil {
		w := domain.DefaultHybridWeights()
		if input.VectorWeight != nil {
			w.Vector = *input.VectorWeight
		}
		if input.KeywordWeight != nil {
			w.Keyword = *input.KeywordWeight
		}
		opts.Weights = &w
	}

	resp, err := s.ports.Retrieval.Retrieve(ctx, input.Query, opts)
	if errors.Is(err, domain.ErrNoIndexedContent) {
		return nil, SearchOutput{Results: []SearchResultOutput{}, Method: string(domain.SearchMethodNone)}, nil
	}
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results:  make([]SearchResultOutput, len(resp.Results)),
		Count:    len(resp.Results),
		Method:   string(resp.Method),
		Degraded: resp.Degraded,
	}
	for i := range resp.Results {
		r := &resp.Results[i]
		output.Results[i] = SearchResultOutput{
			ChunkID:         r.ChunkID,
			DocumentID:      r.DocumentID,
			SourceFilename:  r.SourceFilename,
			PageNumber:      r.PageNumber,
			BBox:            r.BBox.Array(),
			Score:           r.Score,
			SimilarityScore: r.SimilarityScore,
			KeywordScore:    r.KeywordScore,
			SectionTitle:    r.SectionTitle,
			Content:         r.Content,
		}
	}
	return nil, output, nil
}

func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	opts := domain.AnswerOptions{
		Search: domain.SearchOptions{
			TopK:   input.TopK,
			Filter: domain.MetadataFilter{DocumentIDs: input.DocumentIDs},
		},
	}
	ans, err := s.ports.Answer.Answer(ctx, input.Question, opts)
	if err != nil {
		return nil, AskOutput{}, err
	}

	out := AskOutput{
		Answer:            ans.Answer,
		Citations:         make([]CitationOutput, len(ans.Citations)),
		SearchMethod:      string(ans.Metadata.SearchMethod),
		ResultsConsidered: ans.Metadata.ResultsConsidered,
		ResultsCited:      ans.Metadata.ResultsCited,
	}
	for i, c := range ans.Citations {
		out.Citations[i] = CitationOutput{
			ChunkID:        c.ChunkID,
			Confidence:     c.Confidence,
			PageNumber:     c.PageNumber,
			BBox:           c.BBox.Array(),
			SourceFilename: c.SourceFilename,
			Snippet:        c.Snippet,
		}
	}
	return nil, out, nil
}

func (s *Server) handleHighlight(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input HighlightInput,
) (*mcp.CallToolResult, HighlightOutput, error) {
	scale := input.Scale
	if scale == 0 {
		scale = defaultScale
	}
	h, err := s.ports.Highlight.Highlight(ctx, input.ChunkID, scale)
	if err != nil {
		return nil, HighlightOutput{}, err
	}
	return nil, HighlightOutput{
		ChunkID:    h.ChunkID,
		DocumentID: h.DocumentID,
		PageNumber: h.PageNumber,
		BBox:       h.BBox.Array(),
		PageHeight: h.PageHeight,
		Scale:      h.Scale,
		Rect:       h.Rect,
		Invalid:    h.Invalid,
	}, nil
}
