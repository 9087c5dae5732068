package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
	"github.com/custodia-labs/plancite/internal/textutil"
)

// Column weights for bm25(): content, then section title.
const (
	contentWeight = 1.0
	sectionWeight = 0.5
)

// keywordIndex implements driven.KeywordIndex with FTS5.
type keywordIndex struct {
	store *Store
}

var _ driven.KeywordIndex = (*keywordIndex)(nil)

// Index adds or replaces chunks by chunk id.
func (k *keywordIndex) Index(ctx context.Context, chunks []domain.Chunk) error {
	tx, err := k.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	del, err := tx.PrepareContext(ctx, "DELETE FROM chunks_fts WHERE chunk_id = ?")
	if err != nil {
		return fmt.Errorf("preparing delete: %w", err)
	}
	defer del.Close()

	ins, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks_fts (content, section_title, chunk_id, document_id, page_number, element_category)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer ins.Close()

	for i := range chunks {
		c := &chunks[i]
		if _, err := del.ExecContext(ctx, c.ID); err != nil {
			return fmt.Errorf("replacing chunk %s: %w", c.ID, err)
		}
		if _, err := ins.ExecContext(ctx, c.Content, c.Metadata.SectionTitle, c.ID, c.DocumentID,
			c.PageNumber, string(c.Metadata.ElementCategory)); err != nil {
			return fmt.Errorf("indexing chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Search ranks chunks containing any query term with bm25(). FTS5 reports
// bm25 as a negative cost, so the score is its negation.
func (k *keywordIndex) Search(
	ctx context.Context, query string, limit int, filter domain.MetadataFilter,
) ([]driven.KeywordHit, error) {
	match := matchExpression(query)
	if match == "" || limit <= 0 {
		return nil, nil
	}

	where, args := filterClause(filter)
	q := fmt.Sprintf(`
		SELECT chunk_id, -bm25(chunks_fts, %g, %g) AS score
		FROM chunks_fts
		WHERE chunks_fts MATCH ? AND %s
		ORDER BY score DESC, chunk_id
		LIMIT ?
	`, contentWeight, sectionWeight, where)

	rows, err := k.store.db.QueryContext(ctx, q, append(append([]any{match}, args...), limit)...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrKeywordIndexUnavailable, err)
	}
	defer rows.Close()

	var hits []driven.KeywordHit
	for rows.Next() {
		var h driven.KeywordHit
		if err := rows.Scan(&h.ChunkID, &h.Score); err != nil {
			return nil, fmt.Errorf("scanning keyword hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrKeywordIndexUnavailable, err)
	}
	return hits, nil
}

// DeleteDocument removes every chunk of a document.
func (k *keywordIndex) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := k.store.db.ExecContext(ctx, "DELETE FROM chunks_fts WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting keyword entries: %w", err)
	}
	return nil
}

// Close is a no-op; the shared connection is closed by Store.Close.
func (k *keywordIndex) Close() error { return nil }

// matchExpression turns free text into an FTS5 OR query of quoted terms,
// so user punctuation never reaches the FTS5 query parser.
func matchExpression(query string) string {
	terms := textutil.UniqueTerms(query)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}
	return strings.Join(quoted, " OR ")
}
