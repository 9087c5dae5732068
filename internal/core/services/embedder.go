package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
	"github.com/custodia-labs/plancite/internal/logger"
)

// BatchEmbedder embeds chunks in bounded, concurrently issued batches.
type BatchEmbedder struct {
	embedder driven.EmbeddingService
	limiter  *rate.Limiter
	metrics  driven.PipelineMetrics

	batchSize      int
	concurrency    int
	maxRetries     uint64
	initialBackoff time.Duration
	maxBackoff     time.Duration

	// dims is the vector store's declared dimension, 0 to skip the check.
	dims int
}

// NewBatchEmbedder creates a batch embedder. storeDims is the dimension
// the vector store expects; every returned vector must match it.
func NewBatchEmbedder(
	embedder driven.EmbeddingService,
	settings domain.EmbeddingSettings,
	storeDims int,
	metrics driven.PipelineMetrics,
) *BatchEmbedder {
	def := domain.DefaultSettings().Embedding
	if settings.BatchSize <= 0 {
		settings.BatchSize = def.BatchSize
	}
	if settings.BatchConcurrency <= 0 {
		settings.BatchConcurrency = def.BatchConcurrency
	}
	if settings.MaxRetries < 0 {
		settings.MaxRetries = 0
	}
	if settings.InitialBackoff <= 0 {
		settings.InitialBackoff = def.InitialBackoff
	}
	if settings.MaxBackoff <= 0 {
		settings.MaxBackoff = def.MaxBackoff
	}

	limit := rate.Inf
	if settings.RequestsPerSecond > 0 {
		limit = rate.Limit(settings.RequestsPerSecond)
	}

	return &BatchEmbedder{
		embedder:       embedder,
		limiter:        rate.NewLimiter(limit, settings.BatchConcurrency),
		metrics:        metricsOrNop(metrics),
		batchSize:      settings.BatchSize,
		concurrency:    settings.BatchConcurrency,
		maxRetries:     uint64(settings.MaxRetries), // #nosec G115 -- clamped above
		initialBackoff: settings.InitialBackoff,
		maxBackoff:     settings.MaxBackoff,
		dims:           storeDims,
	}
}

// EmbedChunks embeds every chunk and keys the vectors by chunk id.
//
// A batch that exhausts its retries fails alone; its chunks are listed in
// Failures. Once ctx is cancelled no further batch is issued and the
// unsent chunks are listed in NotIssued, while batches already sent
// complete on a detached context. The only error returned is a fatal
// dimension mismatch.
func (b *BatchEmbedder) EmbedChunks(ctx context.Context, chunks []domain.Chunk) (*domain.EmbeddingBatchResult, error) {
	logger.Section("Embedding")
	start := time.Now()
	defer func() { b.metrics.ObserveStage("embed", time.Since(start)) }()

	result := &domain.EmbeddingBatchResult{Records: make(map[string]domain.EmbeddingRecord, len(chunks))}
	if len(chunks) == 0 {
		return result, nil
	}

	var mu sync.Mutex
	notIssued := func(batch []domain.Chunk) {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range batch {
			result.NotIssued = append(result.NotIssued, c.ID)
		}
	}

	// In-flight batches must survive cancellation of ctx, so the group
	// derives from a detached context. It is still cancelled on a fatal error.
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(b.concurrency)

	batches := splitBatches(chunks, b.batchSize)
	logger.Debug("Embedding %d chunks in %d batches (concurrency %d)", len(chunks), len(batches), b.concurrency)

	for i, batch := range batches {
		if ctx.Err() != nil || gctx.Err() != nil {
			for _, rest := range batches[i:] {
				notIssued(rest)
			}
			break
		}

		g.Go(func() error {
			// Wait for the rate limiter on the caller's context: a batch
			// that never left counts as not issued.
			if err := b.limiter.Wait(ctx); err != nil {
				notIssued(batch)
				return nil
			}

			vectors, err := b.embedBatch(gctx, batch)
			if err != nil {
				if errors.Is(err, domain.ErrDimensionMismatch) {
					return err
				}
				logger.Warn("Embedding batch of %d chunks failed: %v", len(batch), err)
				b.metrics.ObserveEmbeddingBatch("failed")
				mu.Lock()
				for _, c := range batch {
					result.Failures = append(result.Failures, domain.ChunkFailure{ChunkID: c.ID, Err: err})
				}
				mu.Unlock()
				return nil
			}

			mu.Lock()
			for j, c := range batch {
				result.Records[c.ID] = domain.EmbeddingRecord{
					ChunkID:  c.ID,
					Vector:   vectors[j],
					Provider: b.embedder.Provider(),
					Model:    b.embedder.ModelName(),
				}
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}

	logger.Info("Embedded %d/%d chunks (%d failed, %d not issued)",
		len(result.Records), len(chunks), len(result.Failures), len(result.NotIssued))
	return result, nil
}

// embedBatch sends one batch, retrying transient provider errors with
// exponential backoff. The returned vectors are index-aligned with batch.
func (b *BatchEmbedder) embedBatch(ctx context.Context, batch []domain.Chunk) ([][]float32, error) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}

	backoff := retry.NewExponential(b.initialBackoff)
	backoff = retry.WithMaxDuration(b.maxBackoff, backoff)
	backoff = retry.WithMaxRetries(b.maxRetries, backoff)

	var vectors [][]float32
	attempts := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		out, err := b.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			var perr *domain.EmbeddingProviderError
			if errors.As(err, &perr) && perr.Retryable {
				logger.Debug("Embedding attempt %d failed, retrying: %v", attempts, err)
				return retry.RetryableError(err)
			}
			return err
		}
		if len(out) != len(texts) {
			return &domain.EmbeddingProviderError{
				Provider: b.embedder.Provider(),
				Err:      fmt.Errorf("returned %d vectors for %d inputs", len(out), len(texts)),
			}
		}
		vectors = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, v := range vectors {
		if len(v) == 0 {
			return nil, &domain.EmbeddingProviderError{
				Provider: b.embedder.Provider(),
				Err:      fmt.Errorf("empty vector for chunk %s", batch[i].ID),
			}
		}
		if b.dims > 0 && len(v) != b.dims {
			return nil, fmt.Errorf("%w: provider returned %d, store expects %d",
				domain.ErrDimensionMismatch, len(v), b.dims)
		}
	}

	if attempts > 1 {
		b.metrics.ObserveEmbeddingBatch("retried")
	} else {
		b.metrics.ObserveEmbeddingBatch("ok")
	}
	return vectors, nil
}

func splitBatches(chunks []domain.Chunk, size int) [][]domain.Chunk {
	out := make([][]domain.Chunk, 0, (len(chunks)+size-1)/size)
	for start := 0; start < len(chunks); start += size {
		out = append(out, chunks[start:min(start+size, len(chunks))])
	}
	return out
}
