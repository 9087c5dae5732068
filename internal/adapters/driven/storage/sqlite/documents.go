package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
)

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// SaveDocument stores or updates a document.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	pagesJSON, err := json.Marshal(doc.Pages)
	if err != nil {
		return fmt.Errorf("marshalling pages: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO documents (id, filename, content_hash, pages, indexed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			content_hash = excluded.content_hash,
			pages = excluded.pages,
			indexed_at = excluded.indexed_at
	`, doc.ID, doc.Filename, doc.ContentHash, string(pagesJSON), doc.IndexedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, filename, content_hash, pages, indexed_at
		FROM documents WHERE id = ?
	`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return doc, err
}

// ListDocuments returns all documents ordered by ID.
func (s *documentStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, filename, content_hash, pages, indexed_at
		FROM documents ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a document. Its chunks go with it by cascade.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// SaveChunks replaces all chunks of a document in one transaction.
func (s *documentStore) SaveChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, ordinal, page_number, element_category, record)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i := range chunks {
		c := &chunks[i]
		if c.DocumentID != documentID {
			return fmt.Errorf("%w: chunk %s belongs to %s, not %s", domain.ErrInvalidInput, c.ID, c.DocumentID, documentID)
		}
		record, err := encodeChunk(c)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, c.ID, documentID, c.Ordinal, c.PageNumber,
			string(c.Metadata.ElementCategory), record); err != nil {
			return fmt.Errorf("saving chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *documentStore) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	var (
		documentID, record string
		ordinal            int
	)
	err := s.store.db.QueryRowContext(ctx,
		"SELECT document_id, ordinal, record FROM chunks WHERE id = ?", id,
	).Scan(&documentID, &ordinal, &record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chunk %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}
	return decodeChunk(documentID, ordinal, record)
}

// GetChunksByID returns the chunks that exist among ids, keyed by id.
func (s *documentStore) GetChunksByID(ctx context.Context, ids []string) (map[string]domain.Chunk, error) {
	out := make(map[string]domain.Chunk, len(ids))
	// Stay well below SQLite's bound-parameter limit.
	const batch = 500
	for start := 0; start < len(ids); start += batch {
		end := min(start+batch, len(ids))
		args := make([]any, 0, end-start)
		for _, id := range ids[start:end] {
			args = append(args, id)
		}
		chunks, err := s.queryChunks(ctx,
			"SELECT document_id, ordinal, record FROM chunks WHERE id IN ("+placeholders(len(args))+")", args...)
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			out[c.ID] = c
		}
	}
	return out, nil
}

// ListChunks returns matching chunks ordered by ID.
func (s *documentStore) ListChunks(ctx context.Context, filter domain.MetadataFilter) ([]domain.Chunk, error) {
	where, args := filterClause(filter)
	return s.queryChunks(ctx, "SELECT document_id, ordinal, record FROM chunks WHERE "+where+" ORDER BY id", args...)
}

// CountChunks returns the number of stored chunks.
func (s *documentStore) CountChunks(ctx context.Context) (int, error) {
	var n int
	if err := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// SaveRun records the outcome of one document's indexing run.
func (s *documentStore) SaveRun(ctx context.Context, r *domain.IndexResult) error {
	warnings := r.Warnings
	if warnings == nil {
		warnings = []domain.Warning{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("marshalling warnings: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO index_runs (run_id, document_id, status, pages, elements, chunks, embedded,
			warnings, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, document_id) DO UPDATE SET
			status = excluded.status,
			pages = excluded.pages,
			elements = excluded.elements,
			chunks = excluded.chunks,
			embedded = excluded.embedded,
			warnings = excluded.warnings,
			error = excluded.error,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at
	`, r.RunID, r.DocumentID, string(r.Status), r.Pages, r.Elements, r.Chunks, r.Embedded,
		string(warningsJSON), r.Error, r.StartedAt.UTC(), r.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	return nil
}

// Runs returns the recorded results of one run, ordered by document ID.
func (s *Store) Runs(ctx context.Context, runID string) ([]domain.IndexResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, document_id, status, pages, elements, chunks, embedded,
			warnings, error, started_at, finished_at
		FROM index_runs WHERE run_id = ? ORDER BY document_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []domain.IndexResult
	for rows.Next() {
		var (
			r            domain.IndexResult
			status       string
			warningsJSON string
		)
		if err := rows.Scan(&r.RunID, &r.DocumentID, &status, &r.Pages, &r.Elements, &r.Chunks, &r.Embedded,
			&warningsJSON, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Status = domain.IndexStatus(status)
		if err := json.Unmarshal([]byte(warningsJSON), &r.Warnings); err != nil {
			return nil, fmt.Errorf("unmarshalling warnings: %w", err)
		}
		if len(r.Warnings) == 0 {
			r.Warnings = nil
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return out, nil
}

// Close is a no-op; the shared connection is closed by Store.Close.
func (s *documentStore) Close() error { return nil }

func (s *documentStore) queryChunks(ctx context.Context, query string, args ...any) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var (
			documentID, record string
			ordinal            int
		)
		if err := rows.Scan(&documentID, &ordinal, &record); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c, err := decodeChunk(documentID, ordinal, record)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var (
		doc       domain.Document
		pagesJSON string
		indexedAt time.Time
	)
	if err := row.Scan(&doc.ID, &doc.Filename, &doc.ContentHash, &pagesJSON, &indexedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	if err := json.Unmarshal([]byte(pagesJSON), &doc.Pages); err != nil {
		return nil, fmt.Errorf("unmarshalling pages: %w", err)
	}
	doc.IndexedAt = indexedAt
	return &doc, nil
}
