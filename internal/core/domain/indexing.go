package domain

import "time"

// PartitionResult is the partitioner's output for one document.
type PartitionResult struct {
	// Pages holds each page's size in points.
	Pages []PageSize

	// Elements are ordered by page, then reading order.
	Elements []Element

	// Failures lists pages excluded after every strategy failed.
	Failures []ExtractionFailure
}

// ChunkFailure reports a chunk whose embedding could not be produced.
type ChunkFailure struct {
	ChunkID string
	Err     error
}

// EmbeddingBatchResult is the embedder's output for a set of chunks.
type EmbeddingBatchResult struct {
	// Records is keyed by chunk id.
	Records map[string]EmbeddingRecord

	// Failures lists chunks from batches that exhausted their retries.
	Failures []ChunkFailure

	// NotIssued lists chunks whose batch was never sent because the
	// context was cancelled first.
	NotIssued []string
}

// WarningKind classifies a stage-local, recoverable problem.
type WarningKind string

// Warning kinds.
const (
	WarningExtractionFailed  WarningKind = "extraction_failed"
	WarningEmbeddingFailed   WarningKind = "embedding_failed"
	WarningInvalidCoordinate WarningKind = "invalid_coordinate"
	WarningCancelled         WarningKind = "cancelled"
)

// Warning is attached to an IndexResult for contained failures.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Page    int         `json:"page,omitempty"`
	ChunkID string      `json:"chunk_id,omitempty"`
	Message string      `json:"message"`
}

// IndexStatus is the outcome of indexing one document.
type IndexStatus string

// Index statuses.
const (
	// IndexSucceeded means every chunk is in both indices.
	IndexSucceeded IndexStatus = "succeeded"

	// IndexPartial means the document is committed with warnings,
	// for example failed pages or chunks only in the keyword index.
	IndexPartial IndexStatus = "partial"

	// IndexFailed means nothing from this run is considered committed.
	IndexFailed IndexStatus = "failed"

	// IndexCancelled means the run stopped early. Chunks whose
	// embeddings completed were stored.
	IndexCancelled IndexStatus = "cancelled"

	// IndexSkipped means the content hash was unchanged.
	IndexSkipped IndexStatus = "skipped"
)

// IndexResult reports one document's indexing run.
type IndexResult struct {
	// RunID is supplied by the caller and groups documents of one run.
	RunID string `json:"run_id"`

	// DocumentID is the indexed document.
	DocumentID string `json:"document_id"`

	// Status is the run outcome.
	Status IndexStatus `json:"status"`

	// Pages is the page count.
	Pages int `json:"pages"`

	// Elements is the element count after partitioning.
	Elements int `json:"elements"`

	// Chunks is the number of chunks stored.
	Chunks int `json:"chunks"`

	// Embedded is the number of chunks stored with a vector.
	Embedded int `json:"embedded"`

	// Warnings lists contained, stage-local failures.
	Warnings []Warning `json:"warnings,omitempty"`

	// Err is the run-level failure, if any.
	Err error `json:"-"`

	// Error is Err's message for serialisation.
	Error string `json:"error,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Fail marks the result failed with err.
func (r *IndexResult) Fail(err error) {
	r.Status = IndexFailed
	r.Err = err
	if err != nil {
		r.Error = err.Error()
	}
}

// Warn appends a warning.
func (r *IndexResult) Warn(w Warning) {
	r.Warnings = append(r.Warnings, w)
}
