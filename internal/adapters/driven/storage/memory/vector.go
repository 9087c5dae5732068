package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore is an exhaustive in-memory cosine index.
type VectorStore struct {
	mu      sync.RWMutex
	dims    int
	records map[string]domain.VectorRecord
}

// NewVectorStore creates a store that accepts vectors of length dims.
func NewVectorStore(dims int) *VectorStore {
	return &VectorStore{
		dims:    dims,
		records: make(map[string]domain.VectorRecord),
	}
}

// Upsert inserts or replaces records by chunk id.
// The whole call fails without writing if any vector has the wrong length.
func (v *VectorStore) Upsert(_ context.Context, records []domain.VectorRecord) error {
	for _, r := range records {
		if len(r.Embedding.Vector) != v.dims {
			return fmt.Errorf("%w: chunk %s has %d dimensions, store expects %d",
				domain.ErrDimensionMismatch, r.Chunk.ID, len(r.Embedding.Vector), v.dims)
		}
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, r := range records {
		r.Embedding.Vector = append([]float32(nil), r.Embedding.Vector...)
		v.records[r.Chunk.ID] = r
	}
	return nil
}

// Search returns up to k chunks by descending cosine similarity.
func (v *VectorStore) Search(
	_ context.Context, query []float32, k int, filter domain.MetadataFilter,
) ([]driven.VectorHit, error) {
	if len(query) != v.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, store expects %d",
			domain.ErrDimensionMismatch, len(query), v.dims)
	}
	v.mu.RLock()
	defer v.mu.RUnlock()

	hits := make([]driven.VectorHit, 0, len(v.records))
	for id, r := range v.records {
		if !filter.Matches(&r.Chunk) {
			continue
		}
		hits = append(hits, driven.VectorHit{
			ChunkID:    id,
			Similarity: domain.CosineSimilarity(query, r.Embedding.Vector),
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if k >= 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Vectors returns stored vectors keyed by chunk id.
func (v *VectorStore) Vectors(_ context.Context, filter domain.MetadataFilter) (map[string][]float32, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[string][]float32)
	for id, r := range v.records {
		if filter.Matches(&r.Chunk) {
			out[id] = r.Embedding.Vector
		}
	}
	return out, nil
}

// DeleteDocument removes every record of a document.
func (v *VectorStore) DeleteDocument(_ context.Context, documentID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for id, r := range v.records {
		if r.Chunk.DocumentID == documentID {
			delete(v.records, id)
		}
	}
	return nil
}

// Get returns one record, for parity checks.
func (v *VectorStore) Get(chunkID string) (domain.VectorRecord, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	r, ok := v.records[chunkID]
	return r, ok
}

// Len returns the number of records.
func (v *VectorStore) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.records)
}

// Dimensions returns the declared vector size.
func (v *VectorStore) Dimensions() int { return v.dims }

// Close releases resources.
func (v *VectorStore) Close() error { return nil }
