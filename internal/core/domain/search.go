package domain

import "time"

// HybridWeights are the fusion weights for the two retrieval signals.
// They need not sum to 1.
type HybridWeights struct {
	// Vector weighs the clipped cosine similarity.
	Vector float64 `json:"vector"`

	// Keyword weighs the min-max normalised lexical score.
	Keyword float64 `json:"keyword"`
}

// DefaultHybridWeights favours semantic similarity slightly.
func DefaultHybridWeights() HybridWeights {
	return HybridWeights{Vector: 0.6, Keyword: 0.4}
}

// RetrievalConfig is passed to the hybrid retriever at construction.
type RetrievalConfig struct {
	// Weights are the default fusion weights.
	Weights HybridWeights

	// Candidates is N, the per-side fetch size. It is raised to top_k
	// when smaller.
	Candidates int

	// SideTimeout bounds each sub-query. A side that exceeds it
	// contributes nothing.
	SideTimeout time.Duration
}

// DefaultRetrievalConfig returns the documented defaults.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		Weights:     DefaultHybridWeights(),
		Candidates:  50,
		SideTimeout: 5 * time.Second,
	}
}

// SearchOptions configures a single retrieval call.
type SearchOptions struct {
	// TopK is the number of results. Zero returns an empty response.
	TopK int

	// Weights overrides the configured weights when set.
	Weights *HybridWeights

	// Filter restricts candidates on both sides.
	Filter MetadataFilter

	// SkipRerank disables the reranker for this call.
	SkipRerank bool
}

// SearchMethod names which signals contributed to a response.
type SearchMethod string

// Search methods.
const (
	SearchMethodHybrid  SearchMethod = "hybrid"
	SearchMethodVector  SearchMethod = "vector"
	SearchMethodKeyword SearchMethod = "keyword"
	SearchMethodNone    SearchMethod = "none"
)

// WithRerank appends the rerank marker.
func (m SearchMethod) WithRerank() SearchMethod {
	return m + "+rerank"
}

// SearchResult is one ranked chunk. It is never persisted.
type SearchResult struct {
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	Content    string `json:"content"`

	// Score is the fused (or reranked) score used for ordering.
	Score float64 `json:"score"`

	// SimilarityScore is the vector similarity clipped to [0,1].
	SimilarityScore float64 `json:"similarity_score"`

	// KeywordScore is the min-max normalised lexical score.
	KeywordScore float64 `json:"keyword_score"`

	SourceFilename string      `json:"source_filename"`
	PageNumber     int         `json:"page_number"`
	BBox           BoundingBox `json:"bbox"`

	// Metadata is the flattened chunk metadata, bbox included.
	Metadata map[string]any `json:"metadata"`

	// SectionTitle is carried for prompt building.
	SectionTitle string `json:"section_title,omitempty"`
}

// NewSearchResult fills a SearchResult from a stored chunk.
func NewSearchResult(c *Chunk) SearchResult {
	return SearchResult{
		ChunkID:        c.ID,
		DocumentID:     c.DocumentID,
		Content:        c.Content,
		SourceFilename: c.Metadata.SourceFilename,
		PageNumber:     c.PageNumber,
		BBox:           c.BBox,
		Metadata:       c.Metadata.Flatten(),
		SectionTitle:   c.Metadata.SectionTitle,
	}
}

// SearchResponse is the retriever's output.
type SearchResponse struct {
	Results []SearchResult `json:"results"`

	// Method records which signals contributed.
	Method SearchMethod `json:"search_method"`

	// Degraded lists sides that failed or timed out.
	Degraded []string `json:"degraded,omitempty"`
}
