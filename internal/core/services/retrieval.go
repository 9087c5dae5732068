package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
	"github.com/custodia-labs/plancite/internal/core/ports/driving"
	"github.com/custodia-labs/plancite/internal/logger"
)

// Ensure HybridRetriever implements the interface.
var _ driving.RetrievalService = (*HybridRetriever)(nil)

// rerankDepth is how many fused candidates per requested result the
// reranker may reorder.
const rerankDepth = 3

// HybridRetriever fuses vector and keyword retrieval.
type HybridRetriever struct {
	docStore driven.DocumentStore
	keyword  driven.KeywordIndex
	vectors  driven.VectorStore
	embedder driven.EmbeddingService
	reranker driven.Reranker
	metrics  driven.PipelineMetrics
	cfg      domain.RetrievalConfig
}

// RetrieverOption configures optional collaborators.
type RetrieverOption func(*HybridRetriever)

// WithReranker enables the rerank stage.
func WithReranker(r driven.Reranker) RetrieverOption {
	return func(h *HybridRetriever) { h.reranker = r }
}

// WithRetrievalMetrics records retrieval latency.
func WithRetrievalMetrics(m driven.PipelineMetrics) RetrieverOption {
	return func(h *HybridRetriever) { h.metrics = metricsOrNop(m) }
}

// NewHybridRetriever creates a retriever. The vector store and embedder
// are optional (can be nil); retrieval then runs keyword-only.
// Zero config fields take their documented defaults.
func NewHybridRetriever(
	docStore driven.DocumentStore,
	keyword driven.KeywordIndex,
	vectors driven.VectorStore,
	embedder driven.EmbeddingService,
	cfg domain.RetrievalConfig,
	opts ...RetrieverOption,
) *HybridRetriever {
	def := domain.DefaultRetrievalConfig()
	if cfg.Weights == (domain.HybridWeights{}) {
		cfg.Weights = def.Weights
	}
	if cfg.Candidates <= 0 {
		cfg.Candidates = def.Candidates
	}
	if cfg.SideTimeout <= 0 {
		cfg.SideTimeout = def.SideTimeout
	}

	h := &HybridRetriever{
		docStore: docStore,
		keyword:  keyword,
		vectors:  vectors,
		embedder: embedder,
		metrics:  nopMetrics{},
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Retrieve returns the top-k fused results for query.
func (h *HybridRetriever) Retrieve(
	ctx context.Context, query string, opts domain.SearchOptions,
) (*domain.SearchResponse, error) {
	logger.Section("Hybrid Retrieval")
	logger.Debug("Query: %q, top_k=%d", query, opts.TopK)

	if opts.TopK < 0 {
		return nil, fmt.Errorf("%w: top_k must not be negative", domain.ErrInvalidInput)
	}
	if opts.TopK == 0 {
		return &domain.SearchResponse{Results: []domain.SearchResult{}, Method: domain.SearchMethodNone}, nil
	}

	weights := h.cfg.Weights
	if opts.Weights != nil {
		weights = *opts.Weights
	}
	if weights.Vector < 0 || weights.Keyword < 0 {
		return nil, fmt.Errorf("%w: hybrid weights must not be negative", domain.ErrInvalidInput)
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}

	count, err := h.docStore.CountChunks(ctx)
	if err != nil {
		return nil, storeError("count chunks", err)
	}
	if count == 0 {
		logger.Info("Corpus is empty")
		return nil, domain.ErrNoIndexedContent
	}

	start := time.Now()
	n := max(h.cfg.Candidates, opts.TopK)
	logger.Debug("Candidates per side: %d, weights: vector=%.2f keyword=%.2f", n, weights.Vector, weights.Keyword)

	var vectorHits []driven.VectorHit
	var keywordHits []driven.KeywordHit
	var vectorErr, keywordErr error

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		vectorHits, vectorErr = h.vectorSide(ctx, query, n, opts.Filter)
	}()

	go func() {
		defer wg.Done()
		keywordHits, keywordErr = h.keywordSide(ctx, query, n, opts.Filter)
	}()

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Handle errors gracefully - degrade if one side fails
	if vectorErr != nil && keywordErr != nil {
		logger.Warn("Hybrid retrieval: both sides failed")
		return nil, fmt.Errorf("%w: vector=%v, keyword=%v", domain.ErrRetrievalUnavailable, vectorErr, keywordErr)
	}

	resp := &domain.SearchResponse{Method: domain.SearchMethodHybrid}
	switch {
	case vectorErr != nil:
		logger.Warn("Hybrid retrieval: vector side degraded: %v", vectorErr)
		resp.Method = domain.SearchMethodKeyword
		resp.Degraded = append(resp.Degraded, "vector: "+vectorErr.Error())
	case keywordErr != nil:
		logger.Warn("Hybrid retrieval: keyword side degraded: %v", keywordErr)
		resp.Method = domain.SearchMethodVector
		resp.Degraded = append(resp.Degraded, "keyword: "+keywordErr.Error())
	}

	logger.Debug("Fusing %d vector + %d keyword hits", len(vectorHits), len(keywordHits))
	fused := fuseScores(normaliseVectorHits(vectorHits), normaliseKeywordHits(keywordHits), weights)

	window := opts.TopK
	if h.reranker != nil && !opts.SkipRerank {
		window = opts.TopK * rerankDepth
	}
	if len(fused) > window {
		fused = fused[:window]
	}

	results, err := h.hydrate(ctx, fused)
	if err != nil {
		return nil, err
	}

	if h.reranker != nil && !opts.SkipRerank && len(results) > 1 {
		reranked, err := h.reranker.Rerank(ctx, query, results)
		if err != nil {
			logger.Warn("Reranker %s failed, keeping fused order: %v", h.reranker.Name(), err)
		} else {
			results = reranked
			resp.Method = resp.Method.WithRerank()
		}
	}

	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	resp.Results = results

	h.metrics.ObserveRetrieval(string(resp.Method), time.Since(start))
	logger.Info("Retrieved %d results via %s", len(results), resp.Method)
	return resp, nil
}

// vectorSide embeds the query and searches the vector store within the side timeout.
func (h *HybridRetriever) vectorSide(
	ctx context.Context, query string, n int, filter domain.MetadataFilter,
) ([]driven.VectorHit, error) {
	if h.vectors == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}
	if h.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, h.cfg.SideTimeout)
	defer cancel()

	embedding, err := h.embedder.Embed(ctx, query)
	if err != nil {
		return nil, sideError("embed query", err)
	}
	logger.Debug("Query embedding: %d dimensions", len(embedding))

	hits, err := h.vectors.Search(ctx, embedding, n, filter)
	if err != nil {
		return nil, sideError("vector search", err)
	}
	logger.Debug("Vector search: %d hits", len(hits))
	return hits, nil
}

// keywordSide searches the keyword index within the side timeout.
func (h *HybridRetriever) keywordSide(
	ctx context.Context, query string, n int, filter domain.MetadataFilter,
) ([]driven.KeywordHit, error) {
	if h.keyword == nil {
		return nil, domain.ErrKeywordIndexUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, h.cfg.SideTimeout)
	defer cancel()

	hits, err := h.keyword.Search(ctx, query, n, filter)
	if err != nil {
		return nil, sideError("keyword search", err)
	}
	logger.Debug("Keyword search: %d hits", len(hits))
	return hits, nil
}

func sideError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: timed out", op)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// storeError reports a document store failure as retrieval being
// unavailable. Cancellation passes through unchanged.
func storeError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrRetrievalUnavailable, op, err)
}

// hydrate loads fused candidates from the document store, keeping order.
// Candidates whose chunk has since been deleted are skipped.
func (h *HybridRetriever) hydrate(ctx context.Context, fused []fusedChunk) ([]domain.SearchResult, error) {
	ids := make([]string, len(fused))
	for i, f := range fused {
		ids[i] = f.chunkID
	}

	chunks, err := h.docStore.GetChunksByID(ctx, ids)
	if err != nil {
		return nil, storeError("hydrate results", err)
	}

	results := make([]domain.SearchResult, 0, len(fused))
	for _, f := range fused {
		c, ok := chunks[f.chunkID]
		if !ok {
			logger.Debug("Skipping stale index entry %s", f.chunkID)
			continue
		}
		r := domain.NewSearchResult(&c)
		r.Score = f.fused
		r.SimilarityScore = f.vector
		r.KeywordScore = f.keyword
		results = append(results, r)
	}
	return results, nil
}
