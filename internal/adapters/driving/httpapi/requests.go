package httpapi

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/plancite/internal/core/domain"
)

// validate caches struct metadata and is safe for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Weights overrides the configured fusion weights.
type Weights struct {
	Vector  float64 `json:"vector" validate:"gte=0"`
	Keyword float64 `json:"keyword" validate:"gte=0"`
}

// SearchRequest is the body of POST /v1/search.
type SearchRequest struct {
	Query       string   `json:"query" validate:"required"`
	TopK        int      `json:"top_k" validate:"gte=0,lte=200"`
	DocumentIDs []string `json:"document_ids" validate:"omitempty,dive,required"`
	PageNumber  int      `json:"page_number" validate:"gte=0"`
	Category    string   `json:"category" validate:"omitempty,oneof=text table image title"`
	Weights     *Weights `json:"weights" validate:"omitempty"`
	SkipRerank  bool     `json:"skip_rerank"`
}

func (r *SearchRequest) options() domain.SearchOptions {
	opts := domain.SearchOptions{
		TopK: r.TopK,
		Filter: domain.MetadataFilter{
			DocumentIDs: r.DocumentIDs,
			PageNumber:  r.PageNumber,
			Category:    domain.ElementCategory(r.Category),
		},
		SkipRerank: r.SkipRerank,
	}
	if opts.TopK == 0 {
		opts.TopK = defaultTopK
	}
	if r.Weights != nil {
		opts.Weights = &domain.HybridWeights{Vector: r.Weights.Vector, Keyword: r.Weights.Keyword}
	}
	return opts
}

// AskRequest is the body of POST /v1/ask.
type AskRequest struct {
	Question         string   `json:"question" validate:"required"`
	TopK             int      `json:"top_k" validate:"gte=0,lte=50"`
	DocumentIDs      []string `json:"document_ids" validate:"omitempty,dive,required"`
	MaxContextTokens int      `json:"max_context_tokens" validate:"gte=0"`
}

// StructureRequest is the body of POST /v1/structure.
type StructureRequest struct {
	DocumentIDs []string `json:"document_ids" validate:"omitempty,dive,required"`
	Threshold   float64  `json:"threshold" validate:"gte=0,lte=1"`
}

// HighlightQuery is the query string of GET /v1/chunks/:id/highlight.
type HighlightQuery struct {
	Scale float64 `query:"scale" validate:"gte=0,lte=20"`
}

// validateRequest returns field errors keyed by JSON-ish field name.
func validateRequest(v any) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"request": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for _, e := range verrs {
		msg := fmt.Sprintf("failed on '%s' tag", e.Tag())
		if e.Param() != "" {
			msg = fmt.Sprintf("failed on '%s=%s' tag", e.Tag(), e.Param())
		}
		out[e.Field()] = msg
	}
	return out
}
