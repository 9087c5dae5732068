package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.AddPages("extracted", 3)
	m.AddPages("blank", 1)
	m.AddPages("failed", 0)
	m.AddChunks("keyword", 12)
	m.AddChunks("vector", 10)
	m.ObserveEmbeddingBatch("ok")
	m.ObserveEmbeddingBatch("ok")
	m.ObserveEmbeddingBatch("failed")
	m.ObserveIndexRun("partial")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.pages.WithLabelValues("extracted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pages.WithLabelValues("blank")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.pages.WithLabelValues("failed")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.chunks.WithLabelValues("keyword")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.chunks.WithLabelValues("vector")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.embeddingBatches.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.embeddingBatches.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.indexRuns.WithLabelValues("partial")))
}

func TestMetrics_Histograms(t *testing.T) {
	m := New()
	m.ObserveStage("partition", 120*time.Millisecond)
	m.ObserveStage("partition", 80*time.Millisecond)
	m.ObserveRetrieval("hybrid", 30*time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(m.stageSeconds))
	assert.Equal(t, 1, testutil.CollectAndCount(m.retrievalSeconds))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.AddChunks("keyword", 2)
	m.ObserveRetrieval("keyword", time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `plancite_chunks_total{index="keyword"} 2`)
	assert.Contains(t, string(body), `plancite_retrieval_duration_seconds_count{method="keyword"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNew_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.ObserveIndexRun("succeeded")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.indexRuns.WithLabelValues("succeeded")))
}
