package sqlite

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
)

// vectorStore implements driven.VectorStore with an exhaustive cosine scan.
// It suits single-machine corpora; pgvector serves larger ones.
type vectorStore struct {
	store *Store
	dims  int
}

var _ driven.VectorStore = (*vectorStore)(nil)

// Upsert inserts or replaces records by chunk id. Nothing is written when
// any vector has the wrong length.
func (v *vectorStore) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	for _, r := range records {
		if len(r.Embedding.Vector) != v.dims {
			return fmt.Errorf("%w: chunk %s has %d dimensions, store expects %d",
				domain.ErrDimensionMismatch, r.Chunk.ID, len(r.Embedding.Vector), v.dims)
		}
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vectors (chunk_id, document_id, page_number, element_category, dims, vector, provider, model)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			document_id = excluded.document_id,
			page_number = excluded.page_number,
			element_category = excluded.element_category,
			dims = excluded.dims,
			vector = excluded.vector,
			provider = excluded.provider,
			model = excluded.model
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		c := r.Chunk
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.PageNumber, string(c.Metadata.ElementCategory),
			v.dims, float32SliceToBytes(r.Embedding.Vector), r.Embedding.Provider, r.Embedding.Model); err != nil {
			return fmt.Errorf("saving vector for chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Search returns up to k chunks by descending cosine similarity, ties
// broken by chunk id.
func (v *vectorStore) Search(
	ctx context.Context, query []float32, k int, filter domain.MetadataFilter,
) ([]driven.VectorHit, error) {
	if len(query) != v.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, store expects %d",
			domain.ErrDimensionMismatch, len(query), v.dims)
	}
	if k <= 0 {
		return nil, nil
	}

	vectors, err := v.Vectors(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrVectorIndexUnavailable, err)
	}
	hits := make([]driven.VectorHit, 0, len(vectors))
	for id, vec := range vectors {
		hits = append(hits, driven.VectorHit{ChunkID: id, Similarity: domain.CosineSimilarity(query, vec)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Vectors returns stored vectors keyed by chunk id.
func (v *vectorStore) Vectors(ctx context.Context, filter domain.MetadataFilter) (map[string][]float32, error) {
	where, args := filterClause(filter)
	rows, err := v.store.db.QueryContext(ctx,
		"SELECT chunk_id, vector FROM vectors WHERE dims = ? AND "+where, append([]any{v.dims}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]float32)
	for rows.Next() {
		var (
			id   string
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning vector: %w", err)
		}
		out[id] = bytesToFloat32Slice(blob)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vectors: %w", err)
	}
	return out, nil
}

// DeleteDocument removes every record of a document.
func (v *vectorStore) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := v.store.db.ExecContext(ctx, "DELETE FROM vectors WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}
	return nil
}

// Dimensions returns the declared vector size.
func (v *vectorStore) Dimensions() int { return v.dims }

// Close is a no-op; the shared connection is closed by Store.Close.
func (v *vectorStore) Close() error { return nil }
