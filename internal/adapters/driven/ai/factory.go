// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	embedcache "github.com/custodia-labs/plancite/internal/adapters/driven/embedding/cache"
	ollamaembed "github.com/custodia-labs/plancite/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/plancite/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/plancite/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/plancite/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/plancite/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
	"github.com/custodia-labs/plancite/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult contains the result of AI service initialisation.
type InitResult struct {
	// EmbeddingService embeds chunks during indexing.
	EmbeddingService driven.EmbeddingService

	// QueryEmbedder embeds queries. It shares the provider with
	// EmbeddingService behind an LRU when caching is enabled.
	QueryEmbedder driven.EmbeddingService

	LLMService driven.LLMService
	Warnings   []string // Non-fatal issues that caused fallback.
}

// KeywordOnly reports whether retrieval runs without vectors.
func (r *InitResult) KeywordOnly() bool {
	return r.EmbeddingService == nil
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.LLMService != nil {
		r.LLMService.Close()
	}
}

// Init creates the configured services and pings them. An unreachable
// service is dropped with a warning so the pipeline degrades instead of
// failing: no embedder means keyword-only retrieval, no LLM means no answers.
func Init(ctx context.Context, embedding *domain.EmbeddingSettings, llm *domain.LLMSettings) *InitResult {
	res := &InitResult{}

	emb, err := CreateAndValidateEmbeddingService(ctx, embedding)
	if err != nil {
		res.Warnings = append(res.Warnings, err.Error())
	} else if emb != nil {
		res.EmbeddingService = emb
		res.QueryEmbedder = WithQueryCache(emb, embedding.QueryCacheSize)
	}

	svc, err := CreateAndValidateLLMService(ctx, llm)
	if err != nil {
		res.Warnings = append(res.Warnings, err.Error())
	} else {
		res.LLMService = svc
	}

	for _, w := range res.Warnings {
		logger.Warn("%s", w)
	}
	return res
}

// WithQueryCache wraps svc in an LRU of size entries. A size of zero or
// less returns svc unchanged.
func WithQueryCache(svc driven.EmbeddingService, size int) driven.EmbeddingService {
	if svc == nil || size <= 0 {
		return svc
	}
	cached, err := embedcache.New(svc, size)
	if err != nil {
		logger.Warn("query embedding cache disabled: %v", err)
		return svc
	}
	return cached
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
func CreateAndValidateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	if err := ping(ctx, svc.Ping); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrEmbeddingUnavailable, err)
	}
	return svc, nil
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
func CreateAndValidateLLMService(ctx context.Context, settings *domain.LLMSettings) (driven.LLMService, error) {
	svc, err := CreateLLMService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	if err := ping(ctx, svc.Ping); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrLLMUnavailable, err)
	}
	return svc, nil
}

func ping(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return fn(ctx)
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || settings.Provider == "" {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		svc, err := ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.ResolvedDimensions(),
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	case domain.AIProviderOpenAI:
		svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.ResolvedDimensions(),
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	case domain.AIProviderAnthropic:
		return nil, fmt.Errorf("anthropic does not support embeddings, use ollama or openai")

	default:
		return nil, fmt.Errorf("%w: embedding provider %q", domain.ErrUnsupportedType, settings.Provider)
	}
}

// CreateLLMService creates the appropriate LLM service based on settings.
// Returns nil if the provider is not configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || settings.Provider == "" {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		svc, err := openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	case domain.AIProviderAnthropic:
		svc, err := anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("%w: LLM provider %q", domain.ErrUnsupportedType, settings.Provider)
	}
}
