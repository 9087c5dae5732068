// Package prometheus records pipeline measurements in a Prometheus registry.
package prometheus

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/plancite/internal/core/ports/driven"
)

var _ driven.PipelineMetrics = (*Metrics)(nil)

const namespace = "plancite"

// Metrics implements driven.PipelineMetrics on its own registry so tests
// and embedded servers never collide on the global one.
type Metrics struct {
	registry *prom.Registry

	stageSeconds     *prom.HistogramVec
	pages            *prom.CounterVec
	chunks           *prom.CounterVec
	embeddingBatches *prom.CounterVec
	retrievalSeconds *prom.HistogramVec
	indexRuns        *prom.CounterVec
}

// New creates and registers the pipeline collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prom.NewRegistry(),
		stageSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of one pipeline stage for one document.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 180},
		}, []string{"stage"}),
		pages: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "Pages processed by extraction outcome.",
		}, []string{"outcome"}),
		chunks: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Chunks written by index.",
		}, []string{"index"}),
		embeddingBatches: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_batches_total",
			Help:      "Embedding batches by outcome.",
		}, []string{"outcome"}),
		retrievalSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Retrieval latency by effective search method.",
			Buckets:   prom.DefBuckets,
		}, []string{"method"}),
		indexRuns: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "index_runs_total",
			Help:      "Document index runs by final status.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(
		m.stageSeconds,
		m.pages,
		m.chunks,
		m.embeddingBatches,
		m.retrievalSeconds,
		m.indexRuns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prom.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.stageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) AddPages(outcome string, n int) {
	if n > 0 {
		m.pages.WithLabelValues(outcome).Add(float64(n))
	}
}

func (m *Metrics) AddChunks(index string, n int) {
	if n > 0 {
		m.chunks.WithLabelValues(index).Add(float64(n))
	}
}

func (m *Metrics) ObserveEmbeddingBatch(outcome string) {
	m.embeddingBatches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRetrieval(method string, d time.Duration) {
	m.retrievalSeconds.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) ObserveIndexRun(status string) {
	m.indexRuns.WithLabelValues(status).Inc()
}
