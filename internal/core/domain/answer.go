package domain

// Citation is a chunk the generator relied on.
type Citation struct {
	ChunkID string `json:"chunk_id"`

	// Confidence is the generator's self-reported trust in [0,1].
	// It is independent of the retrieval score.
	Confidence float64 `json:"confidence"`

	PageNumber     int         `json:"page_number"`
	BBox           BoundingBox `json:"bbox"`
	SourceFilename string      `json:"source_filename,omitempty"`
	Snippet        string      `json:"content_snippet,omitempty"`
}

// AnswerMetadata summarises how an answer was produced.
type AnswerMetadata struct {
	SearchMethod      SearchMethod `json:"search_method"`
	ResultsConsidered int          `json:"results_considered"`
	ResultsCited      int          `json:"results_cited"`
}

// Answer is the generation response.
type Answer struct {
	Answer    string         `json:"answer"`
	Citations []Citation     `json:"citations"`
	Metadata  AnswerMetadata `json:"metadata"`
}

// AnswerOptions configures a single question.
type AnswerOptions struct {
	// Search configures the retrieval step.
	Search SearchOptions

	// MaxContextTokens bounds the packed context. Zero uses the default.
	MaxContextTokens int
}

// Highlight is a chunk's location mapped for a renderer.
type Highlight struct {
	ChunkID    string      `json:"chunk_id"`
	DocumentID string      `json:"document_id"`
	PageNumber int         `json:"page_number"`
	BBox       BoundingBox `json:"bbox"`
	PageHeight float64     `json:"page_height_pt"`
	Rotation   int         `json:"page_rotation,omitempty"`
	Scale      float64     `json:"render_scale"`
	Rect       RenderRect  `json:"rect"`
	Invalid    bool        `json:"bbox_invalid,omitempty"`
}
