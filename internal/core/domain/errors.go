package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown provider or strategy.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Answer generation and LLM reranking are disabled.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrOCRUnavailable indicates no OCR engine is configured.
	ErrOCRUnavailable = errors.New("OCR engine unavailable")

	// ErrKeywordIndexUnavailable indicates the keyword index cannot be reached.
	ErrKeywordIndexUnavailable = errors.New("keyword index unavailable")

	// ErrVectorIndexUnavailable indicates the vector store cannot be reached.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// Pipeline Errors.

	// ErrRetrievalUnavailable indicates both the vector store and the
	// keyword index failed, or the document store could not be read.
	// It is distinct from an empty result.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrNoIndexedContent indicates the corpus holds zero chunks.
	ErrNoIndexedContent = errors.New("no indexed content")

	// ErrInsufficientContent indicates the corpus is too small to
	// derive a document structure.
	ErrInsufficientContent = errors.New("insufficient content for structure generation")

	// ErrNoExtractableContent indicates no page of a document produced elements.
	ErrNoExtractableContent = errors.New("no extractable content")

	// ErrInvalidCoordinate indicates a bbox failed x1>=x0 and y1>=y0.
	// Flagged elements and chunks are kept, never corrected.
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrDimensionMismatch indicates an embedding's length differs from the
	// vector store's declared dimension. It is a configuration error.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrDocumentLocked indicates another writer holds the document lock.
	ErrDocumentLocked = errors.New("document locked by another writer")
)

// ExtractionFailure reports a page that could not be extracted by any strategy.
type ExtractionFailure struct {
	Page    int
	Methods []ExtractionMethod
	Err     error
}

func (e *ExtractionFailure) Error() string {
	return fmt.Sprintf("extraction failed on page %d (tried %v): %v", e.Page, e.Methods, e.Err)
}

func (e *ExtractionFailure) Unwrap() error { return e.Err }

// EmbeddingProviderError reports a failed call to an embedding provider.
type EmbeddingProviderError struct {
	Provider   string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *EmbeddingProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("embedding provider %s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("embedding provider %s: %v", e.Provider, e.Err)
}

func (e *EmbeddingProviderError) Unwrap() error { return e.Err }

// LLMProviderError reports a failed chat call to an LLM provider.
// It matches ErrLLMUnavailable with errors.Is.
type LLMProviderError struct {
	Provider   string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *LLMProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm provider %s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("llm provider %s: %v", e.Provider, e.Err)
}

func (e *LLMProviderError) Unwrap() []error { return []error{ErrLLMUnavailable, e.Err} }

// IsRetryableStatus reports whether an HTTP status warrants a retry.
func IsRetryableStatus(code int) bool {
	return code == 429 || code == 408 || code >= 500
}

// IndexWriteError reports a failed write to one of the indices.
// It is fatal for the document's indexing run.
type IndexWriteError struct {
	Store      string
	DocumentID string
	Err        error
}

func (e *IndexWriteError) Error() string {
	return fmt.Sprintf("index write to %s for document %s: %v", e.Store, e.DocumentID, e.Err)
}

func (e *IndexWriteError) Unwrap() error { return e.Err }
