package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
	"github.com/custodia-labs/plancite/internal/core/ports/driving"
	"github.com/custodia-labs/plancite/internal/logger"
)

// Ensure Indexer implements the interface.
var _ driving.IndexingService = (*Indexer)(nil)

// Indexer coordinates the per-document pipeline:
// partition, chunk, embed, then write to every store.
type Indexer struct {
	partitioner *Partitioner
	pipeline    driven.PostProcessorPipeline
	docStore    driven.DocumentStore
	keyword     driven.KeywordIndex
	locker      driven.DocumentLocker

	// Optional - when nil, documents are indexed for keyword search only.
	embedder *BatchEmbedder
	vectors  driven.VectorStore

	metrics driven.PipelineMetrics
	workers int
	now     func() time.Time
}

// IndexerOption configures optional collaborators.
type IndexerOption func(*Indexer)

// WithEmbedding enables the vector side of the index.
func WithEmbedding(embedder *BatchEmbedder, vectors driven.VectorStore) IndexerOption {
	return func(ix *Indexer) {
		ix.embedder = embedder
		ix.vectors = vectors
	}
}

// WithWorkers bounds how many documents IndexBatch runs at once.
func WithWorkers(n int) IndexerOption {
	return func(ix *Indexer) {
		if n > 0 {
			ix.workers = n
		}
	}
}

// WithIndexMetrics records per-run measurements.
func WithIndexMetrics(m driven.PipelineMetrics) IndexerOption {
	return func(ix *Indexer) { ix.metrics = metricsOrNop(m) }
}

// NewIndexer creates an indexer.
func NewIndexer(
	partitioner *Partitioner,
	pipeline driven.PostProcessorPipeline,
	docStore driven.DocumentStore,
	keyword driven.KeywordIndex,
	locker driven.DocumentLocker,
	opts ...IndexerOption,
) *Indexer {
	ix := &Indexer{
		partitioner: partitioner,
		pipeline:    pipeline,
		docStore:    docStore,
		keyword:     keyword,
		locker:      locker,
		metrics:     nopMetrics{},
		workers:     domain.DefaultSettings().Pipeline.Workers,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// IndexDocument runs the pipeline for one document under its lock.
// The run record is saved whatever the outcome.
//
//nolint:gocognit,gocyclo // Pipeline orchestration with sequential steps
func (ix *Indexer) IndexDocument(
	ctx context.Context, runID string, pdf domain.SourcePDF, opts driving.IndexOptions,
) (*domain.IndexResult, error) {
	res := &domain.IndexResult{
		RunID:      runID,
		DocumentID: pdf.DocumentID,
		StartedAt:  ix.now(),
	}
	defer ix.finish(ctx, res)

	if pdf.DocumentID == "" || len(pdf.Data) == 0 {
		err := fmt.Errorf("%w: document id and PDF bytes are required", domain.ErrInvalidInput)
		res.Fail(err)
		return res, err
	}

	logger.Info("Indexing %s (run %s)", pdf.DocumentID, runID)

	// 1. LOCK - one writer per document id
	unlock, err := ix.locker.Lock(ctx, pdf.DocumentID)
	if err != nil {
		return ix.abort(ctx, res, fmt.Errorf("%w: %w", domain.ErrDocumentLocked, err))
	}
	defer unlock()

	// 2. SKIP UNCHANGED CONTENT
	hash := contentHash(pdf.Data)
	if !opts.Force {
		existing, err := ix.docStore.GetDocument(ctx, pdf.DocumentID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return ix.abort(ctx, res, fmt.Errorf("get document: %w", err))
		}
		if existing != nil && existing.ContentHash == hash {
			logger.Info("Skipping %s: content unchanged", pdf.DocumentID)
			res.Status = domain.IndexSkipped
			res.Pages = existing.PageCount()
			return res, nil
		}
	}

	// 3. PARTITION
	parts, err := ix.partitioner.Partition(ctx, &pdf)
	if err != nil {
		return ix.abort(ctx, res, fmt.Errorf("partition: %w", err))
	}
	res.Pages = len(parts.Pages)
	res.Elements = len(parts.Elements)
	for i := range parts.Failures {
		f := &parts.Failures[i]
		res.Warn(domain.Warning{Kind: domain.WarningExtractionFailed, Page: f.Page, Message: f.Error()})
	}
	if len(parts.Elements) == 0 {
		return ix.abort(ctx, res, fmt.Errorf("%s: %w", pdf.DocumentID, domain.ErrNoExtractableContent))
	}
	for i := range parts.Elements {
		if e := &parts.Elements[i]; e.InvalidBBox {
			res.Warn(domain.Warning{
				Kind:    domain.WarningInvalidCoordinate,
				Page:    e.PageNumber,
				Message: fmt.Sprintf("element %s: %v %s", e.ID, domain.ErrInvalidCoordinate, e.BBox),
			})
		}
	}

	// 4. CHUNK
	start := ix.now()
	chunks, err := ix.pipeline.Process(ctx, &pdf, parts.Elements)
	ix.metrics.ObserveStage("chunk", time.Since(start))
	if err != nil {
		return ix.abort(ctx, res, fmt.Errorf("chunk: %w", err))
	}
	if len(chunks) == 0 {
		return ix.abort(ctx, res, fmt.Errorf("%s: no chunks: %w", pdf.DocumentID, domain.ErrNoExtractableContent))
	}

	// 5. EMBED (if service available)
	var records []domain.VectorRecord
	cancelled := false
	if ix.embedder != nil && ix.vectors != nil {
		batch, err := ix.embedder.EmbedChunks(ctx, chunks)
		if err != nil {
			return ix.abort(ctx, res, fmt.Errorf("embed: %w", err))
		}

		for _, f := range batch.Failures {
			res.Warn(domain.Warning{Kind: domain.WarningEmbeddingFailed, ChunkID: f.ChunkID, Message: f.Err.Error()})
		}
		if len(batch.NotIssued) > 0 {
			cancelled = true
			res.Warn(domain.Warning{
				Kind:    domain.WarningCancelled,
				Message: fmt.Sprintf("%d chunks not embedded before cancellation and not stored", len(batch.NotIssued)),
			})
			chunks = dropChunks(chunks, batch.NotIssued)
		}

		for i := range chunks {
			rec, ok := batch.Records[chunks[i].ID]
			if !ok {
				continue
			}
			chunks[i].Metadata.EmbeddingProvider = rec.Provider
			chunks[i].Metadata.EmbeddingModel = rec.Model
			records = append(records, domain.VectorRecord{Chunk: chunks[i], Embedding: rec})
		}
	}
	if ctx.Err() != nil {
		cancelled = true
	}

	// 6. WRITE - detached so that finished embeddings are stored even
	// when the run was cancelled mid-way. The content hash is kept only
	// for complete runs, so an incomplete one is redone next time.
	stored := hash
	if !complete(res, cancelled) {
		stored = ""
	}
	wctx := context.WithoutCancel(ctx)
	start = ix.now()
	if err := ix.write(wctx, &pdf, stored, parts.Pages, chunks, records); err != nil {
		ix.rollback(wctx, pdf.DocumentID)
		res.Fail(err)
		return res, err
	}
	ix.metrics.ObserveStage("store", time.Since(start))
	ix.metrics.AddChunks("keyword", len(chunks))
	ix.metrics.AddChunks("vector", len(records))

	res.Chunks = len(chunks)
	res.Embedded = len(records)
	switch {
	case cancelled:
		res.Status = domain.IndexCancelled
		return res, ctx.Err()
	case len(res.Warnings) > 0:
		res.Status = domain.IndexPartial
	default:
		res.Status = domain.IndexSucceeded
	}
	return res, nil
}

// complete reports whether a run stored everything it could. Invalid
// coordinates do not count against it since a rerun reproduces them.
func complete(res *domain.IndexResult, cancelled bool) bool {
	if cancelled {
		return false
	}
	for _, w := range res.Warnings {
		switch w.Kind {
		case domain.WarningExtractionFailed, domain.WarningEmbeddingFailed, domain.WarningCancelled:
			return false
		}
	}
	return true
}

// write replaces the document's previous entries in every store.
func (ix *Indexer) write(
	ctx context.Context,
	pdf *domain.SourcePDF,
	hash string,
	pages []domain.PageSize,
	chunks []domain.Chunk,
	records []domain.VectorRecord,
) error {
	id := pdf.DocumentID
	wrap := func(store string, err error) error {
		return &domain.IndexWriteError{Store: store, DocumentID: id, Err: err}
	}

	if err := ix.keyword.DeleteDocument(ctx, id); err != nil {
		return wrap("keyword", err)
	}
	if ix.vectors != nil {
		if err := ix.vectors.DeleteDocument(ctx, id); err != nil {
			return wrap("vector", err)
		}
	}

	doc := &domain.Document{
		ID:          id,
		Filename:    pdf.Filename,
		ContentHash: hash,
		Pages:       pages,
		IndexedAt:   ix.now(),
	}
	if err := ix.docStore.SaveDocument(ctx, doc); err != nil {
		return wrap("documents", err)
	}
	if err := ix.docStore.SaveChunks(ctx, id, chunks); err != nil {
		return wrap("documents", err)
	}
	if err := ix.keyword.Index(ctx, chunks); err != nil {
		return wrap("keyword", err)
	}
	if len(records) > 0 {
		if err := ix.vectors.Upsert(ctx, records); err != nil {
			return wrap("vector", err)
		}
	}
	return nil
}

// rollback removes whatever a failed write left behind.
func (ix *Indexer) rollback(ctx context.Context, documentID string) {
	if err := ix.keyword.DeleteDocument(ctx, documentID); err != nil {
		logger.Warn("Rollback of keyword entries for %s failed: %v", documentID, err)
	}
	if ix.vectors != nil {
		if err := ix.vectors.DeleteDocument(ctx, documentID); err != nil {
			logger.Warn("Rollback of vectors for %s failed: %v", documentID, err)
		}
	}
	if err := ix.docStore.DeleteDocument(ctx, documentID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		logger.Warn("Rollback of document %s failed: %v", documentID, err)
	}
}

// abort ends a run before anything was written. Cancellation is reported
// as such rather than as a failure.
func (ix *Indexer) abort(ctx context.Context, res *domain.IndexResult, err error) (*domain.IndexResult, error) {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		res.Status = domain.IndexCancelled
		res.Err = err
		res.Error = err.Error()
		return res, err
	}
	res.Fail(err)
	return res, err
}

func (ix *Indexer) finish(ctx context.Context, res *domain.IndexResult) {
	res.FinishedAt = ix.now()
	if err := ix.docStore.SaveRun(context.WithoutCancel(ctx), res); err != nil {
		logger.Warn("Save run record for %s failed: %v", res.DocumentID, err)
	}
	ix.metrics.ObserveIndexRun(string(res.Status))

	switch res.Status {
	case domain.IndexFailed:
		logger.Error("Indexing %s failed: %v", res.DocumentID, res.Err)
	case domain.IndexSkipped:
	default:
		logger.Info("Indexed %s: %s, %d pages, %d chunks (%d embedded), %d warnings",
			res.DocumentID, res.Status, res.Pages, res.Chunks, res.Embedded, len(res.Warnings))
	}
}

// IndexBatch indexes documents concurrently up to the worker limit.
// One document's failure never stops the others.
func (ix *Indexer) IndexBatch(
	ctx context.Context, runID string, pdfs []domain.SourcePDF, opts driving.IndexOptions,
) []domain.IndexResult {
	results := make([]domain.IndexResult, len(pdfs))

	var g errgroup.Group
	g.SetLimit(ix.workers)
	for i := range pdfs {
		g.Go(func() error {
			res, _ := ix.IndexDocument(ctx, runID, pdfs[i], opts)
			results[i] = *res
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// DeleteDocument removes a document from every store under its lock.
func (ix *Indexer) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := ix.docStore.GetDocument(ctx, documentID); err != nil {
		return fmt.Errorf("get document: %w", err)
	}

	unlock, err := ix.locker.Lock(ctx, documentID)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDocumentLocked, err)
	}
	defer unlock()

	if err := ix.keyword.DeleteDocument(ctx, documentID); err != nil {
		return &domain.IndexWriteError{Store: "keyword", DocumentID: documentID, Err: err}
	}
	if ix.vectors != nil {
		if err := ix.vectors.DeleteDocument(ctx, documentID); err != nil {
			return &domain.IndexWriteError{Store: "vector", DocumentID: documentID, Err: err}
		}
	}
	if err := ix.docStore.DeleteDocument(ctx, documentID); err != nil {
		return &domain.IndexWriteError{Store: "documents", DocumentID: documentID, Err: err}
	}
	logger.Info("Deleted document %s", documentID)
	return nil
}

// ListDocuments returns the document registry.
func (ix *Indexer) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	docs, err := ix.docStore.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func dropChunks(chunks []domain.Chunk, ids []string) []domain.Chunk {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	out := chunks[:0]
	for _, c := range chunks {
		if _, ok := drop[c.ID]; !ok {
			out = append(out, c)
		}
	}
	return out
}
