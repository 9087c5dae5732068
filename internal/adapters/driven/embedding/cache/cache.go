// Package cache memoises embeddings in an LRU keyed by text hash.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/custodia-labs/plancite/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// EmbeddingService wraps another EmbeddingService with an LRU.
// Repeated queries skip the provider round trip.
type EmbeddingService struct {
	driven.EmbeddingService
	cache *lru.Cache[string, []float32]
}

// New wraps inner with a cache of size entries.
func New(inner driven.EmbeddingService, size int) (*EmbeddingService, error) {
	if size <= 0 {
		return nil, fmt.Errorf("embedding cache: size must be greater than zero")
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}
	return &EmbeddingService{EmbeddingService: inner, cache: c}, nil
}

// Embed returns the cached vector for text, embedding it on a miss.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	key := s.key(text)
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}
	v, err := s.EmbeddingService.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, v)
	return v, nil
}

// EmbedBatch sends only cache misses to the provider.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missTexts []string
		missAt    []int
	)
	for i, text := range texts {
		if v, ok := s.cache.Get(s.key(text)); ok {
			out[i] = v
			continue
		}
		missTexts = append(missTexts, text)
		missAt = append(missAt, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	embedded, err := s.EmbeddingService.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	// A short reply is passed through so the caller's count check fires.
	if len(embedded) != len(missTexts) {
		return embedded, nil
	}
	for j, v := range embedded {
		out[missAt[j]] = v
		if len(v) > 0 {
			s.cache.Add(s.key(missTexts[j]), v)
		}
	}
	return out, nil
}

// Len returns the number of cached vectors.
func (s *EmbeddingService) Len() int {
	return s.cache.Len()
}

// key scopes entries by model so a config change never serves stale vectors.
func (s *EmbeddingService) key(text string) string {
	sum := sha256.Sum256([]byte(s.ModelName() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
