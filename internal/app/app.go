// Package app wires settings into a running set of services.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/plancite/internal/adapters/driven/ai"
	"github.com/custodia-labs/plancite/internal/adapters/driven/config/file"
	"github.com/custodia-labs/plancite/internal/adapters/driven/extract/native"
	"github.com/custodia-labs/plancite/internal/adapters/driven/extract/ocr"
	"github.com/custodia-labs/plancite/internal/adapters/driven/extract/pdfinfo"
	memorylock "github.com/custodia-labs/plancite/internal/adapters/driven/lock/memory"
	redislock "github.com/custodia-labs/plancite/internal/adapters/driven/lock/redis"
	prommetrics "github.com/custodia-labs/plancite/internal/adapters/driven/metrics/prometheus"
	"github.com/custodia-labs/plancite/internal/adapters/driven/ocr/httpocr"
	"github.com/custodia-labs/plancite/internal/adapters/driven/rerank/lexical"
	llmrerank "github.com/custodia-labs/plancite/internal/adapters/driven/rerank/llm"
	"github.com/custodia-labs/plancite/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/plancite/internal/adapters/driven/storage/pgvector"
	"github.com/custodia-labs/plancite/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
	"github.com/custodia-labs/plancite/internal/core/services"
	"github.com/custodia-labs/plancite/internal/logger"
	"github.com/custodia-labs/plancite/internal/postprocessors"
)

// Vector backends.
const (
	BackendSQLite   = "sqlite"
	BackendPGVector = "pgvector"
	BackendMemory   = "memory"
)

// App holds the wired services and the resources behind them.
type App struct {
	Settings domain.Settings

	Indexing  *services.Indexer
	Retrieval *services.HybridRetriever
	Answer    *services.AnswerService
	Highlight *services.HighlightService
	Structure *services.Clusterer
	Metrics   *prommetrics.Metrics

	// Store is the sqlite store behind documents, chunks and runs.
	Store *sqlite.Store

	// Warnings lists degraded capabilities, such as an unreachable
	// embedding provider.
	Warnings []string

	closers []func() error
}

// Load reads the configuration at path and wires the services.
func Load(ctx context.Context, path string) (*App, error) {
	loader, err := file.NewLoader(path)
	if err != nil {
		return nil, err
	}
	settings, err := loader.Load()
	if err != nil {
		return nil, err
	}
	logger.Debug("Loaded configuration from %s", loader.Path())
	return New(ctx, settings)
}

// New wires services from settings. On error every resource opened so
// far is closed.
//
//nolint:gocognit,gocyclo // Composition root with one branch per backend
func New(ctx context.Context, settings domain.Settings) (a *App, err error) {
	a = &App{Settings: settings, Metrics: prommetrics.New()}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()

	// STORAGE
	store, err := sqlite.NewStore(settings.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)
	docStore := store.DocumentStore()
	keyword := store.KeywordIndex()

	// AI
	aiRes := ai.Init(ctx, &settings.Embedding, &settings.LLM)
	a.Warnings = append(a.Warnings, aiRes.Warnings...)
	a.closers = append(a.closers, func() error { aiRes.Close(); return nil })

	var vectors driven.VectorStore
	if aiRes.EmbeddingService != nil {
		vectors, err = openVectors(ctx, settings.Storage, store, aiRes.EmbeddingService.Dimensions())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, vectors.Close)
	} else {
		a.Warnings = append(a.Warnings, "no embedding provider: retrieval is keyword-only")
	}

	// LOCKING
	var locker driven.DocumentLocker = memorylock.NewLocker()
	if settings.Storage.RedisAddr != "" {
		rl, err := redislock.New(ctx, redislock.Config{Addr: settings.Storage.RedisAddr, TTL: settings.Pipeline.LockTTL})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rl.Close)
		locker = rl
	}

	// PARTITIONING
	inspector := pdfinfo.New()
	extractors := []driven.PageExtractor{native.New()}
	if settings.Extraction.OCRURL != "" {
		engine, err := httpocr.New(httpocr.Config{BaseURL: settings.Extraction.OCRURL, Timeout: settings.Extraction.OCRTimeout})
		if err != nil {
			return nil, err
		}
		ocrExtractor, err := ocr.New(inspector, engine)
		if err != nil {
			return nil, err
		}
		extractors = append(extractors, ocrExtractor)
	}
	partitioner, err := services.NewPartitioner(inspector, settings.Extraction, a.Metrics, extractors...)
	if err != nil {
		return nil, err
	}

	// INDEXING
	opts := []services.IndexerOption{
		services.WithWorkers(settings.Pipeline.Workers),
		services.WithIndexMetrics(a.Metrics),
	}
	if vectors != nil {
		embedder := services.NewBatchEmbedder(aiRes.EmbeddingService, settings.Embedding, vectors.Dimensions(), a.Metrics)
		opts = append(opts, services.WithEmbedding(embedder, vectors))
	}
	a.Indexing = services.NewIndexer(partitioner, postprocessors.NewDefaultPipeline(settings.Chunking),
		docStore, keyword, locker, opts...)

	// PROMPTS
	var prompts driven.PromptStore
	if ps, perr := file.NewPromptStore(promptDir(settings.Storage.DataDir)); perr != nil {
		logger.Warn("Custom prompts disabled: %v", perr)
	} else {
		prompts = ps
	}

	// RETRIEVAL
	retrieverOpts := []services.RetrieverOption{services.WithRetrievalMetrics(a.Metrics)}
	if r := newReranker(settings.Rerank.Method, aiRes.LLMService, prompts); r != nil {
		retrieverOpts = append(retrieverOpts, services.WithReranker(r))
	}
	var queryEmbedder driven.EmbeddingService
	if vectors != nil {
		queryEmbedder = aiRes.QueryEmbedder
	}
	a.Retrieval = services.NewHybridRetriever(docStore, keyword, vectors, queryEmbedder, settings.Retrieval, retrieverOpts...)

	// GENERATION, HIGHLIGHT, STRUCTURE
	a.Answer = services.NewAnswerService(a.Retrieval, aiRes.LLMService,
		services.WithMaxContextTokens(settings.LLM.MaxContextTokens))
	if prompts != nil {
		a.Answer.SetPromptStore(prompts)
	}
	if aiRes.LLMService == nil {
		a.Warnings = append(a.Warnings, "no LLM provider: answers are unavailable")
	}
	a.Highlight = services.NewHighlightService(docStore)
	a.Structure = services.NewClusterer(docStore, vectors, settings.Clustering.Threshold)

	return a, nil
}

func promptDir(dataDir string) string {
	if dataDir == "" {
		return ""
	}
	return filepath.Join(dataDir, "prompts")
}

func openVectors(ctx context.Context, cfg domain.StorageSettings, store *sqlite.Store, dims int) (driven.VectorStore, error) {
	switch cfg.VectorBackend {
	case BackendPGVector:
		return pgvector.New(ctx, pgvector.Config{DSN: cfg.PostgresDSN, Dimensions: dims})
	case BackendMemory:
		return memory.NewVectorStore(dims), nil
	case BackendSQLite, "":
		return store.VectorStore(ctx, dims)
	}
	return nil, fmt.Errorf("%w: unknown vector backend %q", domain.ErrInvalidInput, cfg.VectorBackend)
}

func newReranker(method string, llm driven.LLMService, prompts driven.PromptStore) driven.Reranker {
	switch method {
	case domain.RerankerNone, "":
		return nil
	case domain.RerankerLLM:
		if llm == nil {
			logger.Warn("LLM reranker needs an LLM provider, using lexical")
			return lexical.New()
		}
		r := llmrerank.New(llm)
		if prompts != nil {
			r.SetPromptStore(prompts)
		}
		return r
	default:
		return lexical.New()
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
