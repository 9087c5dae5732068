package driven

import "time"

// PipelineMetrics records pipeline measurements.
// Implementations must be safe for concurrent use.
type PipelineMetrics interface {
	// ObserveStage records one stage's duration for one document.
	ObserveStage(stage string, d time.Duration)

	// AddPages counts pages by outcome ("extracted", "blank", "failed").
	AddPages(outcome string, n int)

	// AddChunks counts chunks by index ("keyword", "vector").
	AddChunks(index string, n int)

	// ObserveEmbeddingBatch counts batches by outcome ("ok", "retried", "failed").
	ObserveEmbeddingBatch(outcome string)

	// ObserveRetrieval records a retrieval call's latency by method.
	ObserveRetrieval(method string, d time.Duration)

	// ObserveIndexRun counts document runs by status.
	ObserveIndexRun(status string)
}
