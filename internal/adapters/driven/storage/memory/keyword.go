package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
	"github.com/custodia-labs/plancite/internal/textutil"
)

// Ensure KeywordIndex implements the interface.
var _ driven.KeywordIndex = (*KeywordIndex)(nil)

// BM25 parameters, matching SQLite FTS5's defaults.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

type indexedChunk struct {
	chunk  domain.Chunk
	terms  map[string]int
	length int
}

// KeywordIndex is an in-memory BM25 index.
type KeywordIndex struct {
	mu       sync.RWMutex
	docs     map[string]*indexedChunk
	df       map[string]int
	totalLen int
}

// NewKeywordIndex creates an empty index.
func NewKeywordIndex() *KeywordIndex {
	return &KeywordIndex{
		docs: make(map[string]*indexedChunk),
		df:   make(map[string]int),
	}
}

// Index adds or replaces chunks by chunk id.
func (k *KeywordIndex) Index(_ context.Context, chunks []domain.Chunk) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, c := range chunks {
		k.removeLocked(c.ID)
		tokens := textutil.Tokenize(c.Content)
		terms := make(map[string]int, len(tokens))
		for _, t := range tokens {
			terms[t]++
		}
		for t := range terms {
			k.df[t]++
		}
		k.docs[c.ID] = &indexedChunk{chunk: c, terms: terms, length: len(tokens)}
		k.totalLen += len(tokens)
	}
	return nil
}

func (k *KeywordIndex) removeLocked(id string) {
	old, ok := k.docs[id]
	if !ok {
		return
	}
	for t := range old.terms {
		k.df[t]--
		if k.df[t] == 0 {
			delete(k.df, t)
		}
	}
	k.totalLen -= old.length
	delete(k.docs, id)
}

// Search scores chunks containing any query term with BM25.
func (k *KeywordIndex) Search(
	_ context.Context, query string, limit int, filter domain.MetadataFilter,
) ([]driven.KeywordHit, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	terms := textutil.UniqueTerms(query)
	if len(terms) == 0 || len(k.docs) == 0 || limit <= 0 {
		return []driven.KeywordHit{}, nil
	}

	n := float64(len(k.docs))
	avgLen := float64(k.totalLen) / n
	hits := make([]driven.KeywordHit, 0)

	for id, d := range k.docs {
		if !filter.Matches(&d.chunk) {
			continue
		}
		var score float64
		for _, t := range terms {
			tf := float64(d.terms[t])
			if tf == 0 {
				continue
			}
			df := float64(k.df[t])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			norm := tf + bm25K1*(1-bm25B+bm25B*float64(d.length)/avgLen)
			score += idf * tf * (bm25K1 + 1) / norm
		}
		if score > 0 {
			hits = append(hits, driven.KeywordHit{ChunkID: id, Score: score})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// DeleteDocument removes every chunk of a document.
func (k *KeywordIndex) DeleteDocument(_ context.Context, documentID string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for id, d := range k.docs {
		if d.chunk.DocumentID == documentID {
			k.removeLocked(id)
		}
	}
	return nil
}

// Len returns the number of indexed chunks.
func (k *KeywordIndex) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.docs)
}

// Close releases resources.
func (k *KeywordIndex) Close() error { return nil }
