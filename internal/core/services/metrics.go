package services

import (
	"time"

	"github.com/custodia-labs/plancite/internal/core/ports/driven"
)

// nopMetrics discards measurements when no recorder is configured.
type nopMetrics struct{}

var _ driven.PipelineMetrics = nopMetrics{}

func (nopMetrics) ObserveStage(string, time.Duration)     {}
func (nopMetrics) AddPages(string, int)                   {}
func (nopMetrics) AddChunks(string, int)                  {}
func (nopMetrics) ObserveEmbeddingBatch(string)           {}
func (nopMetrics) ObserveRetrieval(string, time.Duration) {}
func (nopMetrics) ObserveIndexRun(string)                 {}

func metricsOrNop(m driven.PipelineMetrics) driven.PipelineMetrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
