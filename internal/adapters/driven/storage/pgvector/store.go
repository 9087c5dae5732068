// Package pgvector provides a VectorStore on PostgreSQL with the pgvector
// extension, for corpora that outgrow the local SQLite scan.
package pgvector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvec "github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// DefaultTable holds the chunk vectors.
const DefaultTable = "plancite_chunks"

// Config configures the pgvector store.
type Config struct {
	// DSN is the PostgreSQL connection string.
	DSN string

	// Table defaults to DefaultTable.
	Table string

	// Dimensions is the declared vector size.
	Dimensions int
}

// Store is a pgvector-backed vector store. Similarity uses the cosine
// distance operator <=>.
type Store struct {
	pool  *pgxpool.Pool
	table string
	dims  int
}

// New connects, enables the extension and creates the table if needed.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: pgvector: DSN is required", domain.ErrInvalidInput)
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: pgvector: dimensions must be positive", domain.ErrInvalidInput)
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: pgvector: connect: %w", domain.ErrVectorIndexUnavailable, err)
	}
	s := &Store{
		pool:  pool,
		table: pgx.Identifier{cfg.Table}.Sanitize(),
		dims:  cfg.Dimensions,
	}
	if err := s.ensureSchema(ctx, cfg.Table); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context, table string) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("pgvector: enable extension: %w", err)
	}
	if _, err := s.pool.Exec(ctx, createTableSQL(s.table, s.dims)); err != nil {
		return fmt.Errorf("pgvector: create table: %w", err)
	}
	if _, err := s.pool.Exec(ctx, createIndexSQL(s.table, table)); err != nil {
		return fmt.Errorf("pgvector: create index: %w", err)
	}

	// A vector(n) column reports n as its type modifier.
	var existing int
	err := s.pool.QueryRow(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = $1::regclass AND attname = 'embedding'
	`, s.table).Scan(&existing)
	if err != nil {
		return fmt.Errorf("pgvector: read column type: %w", err)
	}
	if existing > 0 && existing != s.dims {
		return fmt.Errorf("%w: table %s stores %d dimensions, embedding model produces %d",
			domain.ErrDimensionMismatch, table, existing, s.dims)
	}
	return nil
}

func createTableSQL(table string, dims int) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	chunk_id         TEXT PRIMARY KEY,
	document_id      TEXT NOT NULL,
	page_number      INTEGER NOT NULL,
	element_category TEXT NOT NULL,
	embedding        vector(%d) NOT NULL,
	provider         TEXT NOT NULL,
	model            TEXT NOT NULL,
	record           JSONB NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, table, dims)
}

func createIndexSQL(table, rawTable string) string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (document_id)",
		pgx.Identifier{rawTable + "_document_idx"}.Sanitize(), table)
}

// Upsert inserts or replaces records by chunk id in one transaction.
func (s *Store) Upsert(ctx context.Context, records []domain.VectorRecord) (err error) {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if len(r.Embedding.Vector) != s.dims {
			return fmt.Errorf("%w: chunk %s has %d dimensions, store expects %d",
				domain.ErrDimensionMismatch, r.Chunk.ID, len(r.Embedding.Vector), s.dims)
		}
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("pgvector: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = fmt.Errorf("pgvector: rollback failed: %w; original error: %v", rbErr, err)
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("pgvector: commit: %w", commitErr)
		}
	}()

	stmt := upsertSQL(s.table)
	now := time.Now().UTC()
	for _, r := range records {
		c := r.Chunk
		record, marshalErr := json.Marshal(c.Record())
		if marshalErr != nil {
			return fmt.Errorf("pgvector: marshal chunk %s: %w", c.ID, marshalErr)
		}
		if _, err = tx.Exec(ctx, stmt, c.ID, c.DocumentID, c.PageNumber, string(c.Metadata.ElementCategory),
			pgvec.NewVector(r.Embedding.Vector), r.Embedding.Provider, r.Embedding.Model, record, now); err != nil {
			return fmt.Errorf("pgvector: upsert %s: %w", c.ID, err)
		}
	}
	return nil
}

func upsertSQL(table string) string {
	return fmt.Sprintf(`INSERT INTO %s
	(chunk_id, document_id, page_number, element_category, embedding, provider, model, record, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (chunk_id) DO UPDATE SET
	document_id = excluded.document_id,
	page_number = excluded.page_number,
	element_category = excluded.element_category,
	embedding = excluded.embedding,
	provider = excluded.provider,
	model = excluded.model,
	record = excluded.record,
	updated_at = excluded.updated_at`, table)
}

// Search returns up to k chunks by descending cosine similarity.
func (s *Store) Search(
	ctx context.Context, query []float32, k int, filter domain.MetadataFilter,
) ([]driven.VectorHit, error) {
	if len(query) != s.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, store expects %d",
			domain.ErrDimensionMismatch, len(query), s.dims)
	}
	if k <= 0 {
		return nil, nil
	}

	sql, args := searchSQL(s.table, filter, k)
	rows, err := s.pool.Query(ctx, sql, append([]any{pgvec.NewVector(query)}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("%w: pgvector: search: %w", domain.ErrVectorIndexUnavailable, err)
	}
	defer rows.Close()

	hits := make([]driven.VectorHit, 0, k)
	for rows.Next() {
		var h driven.VectorHit
		if err := rows.Scan(&h.ChunkID, &h.Similarity); err != nil {
			return nil, fmt.Errorf("pgvector: scan: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: pgvector: search rows: %w", domain.ErrVectorIndexUnavailable, err)
	}
	return hits, nil
}

// searchSQL builds the similarity query. $1 is the query vector.
func searchSQL(table string, filter domain.MetadataFilter, k int) (string, []any) {
	where, args, next := whereClause(filter, 2)
	return fmt.Sprintf(
		"SELECT chunk_id, 1 - (embedding <=> $1) AS similarity FROM %s WHERE %s ORDER BY embedding <=> $1, chunk_id LIMIT $%d",
		table, where, next,
	), append(args, k)
}

// whereClause renders filter with positional parameters starting at pos.
// It returns the next free position.
func whereClause(filter domain.MetadataFilter, pos int) (string, []any, int) {
	conds := []string{"TRUE"}
	var args []any
	if len(filter.DocumentIDs) > 0 {
		conds = append(conds, fmt.Sprintf("document_id = ANY($%d)", pos))
		args = append(args, filter.DocumentIDs)
		pos++
	}
	if filter.PageNumber > 0 {
		conds = append(conds, fmt.Sprintf("page_number = $%d", pos))
		args = append(args, filter.PageNumber)
		pos++
	}
	if filter.Category != "" {
		conds = append(conds, fmt.Sprintf("element_category = $%d", pos))
		args = append(args, string(filter.Category))
		pos++
	}
	return strings.Join(conds, " AND "), args, pos
}

// Vectors returns stored vectors keyed by chunk id.
func (s *Store) Vectors(ctx context.Context, filter domain.MetadataFilter) (map[string][]float32, error) {
	where, args, _ := whereClause(filter, 1)
	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT chunk_id, embedding FROM %s WHERE %s", s.table, where), args...)
	if err != nil {
		return nil, fmt.Errorf("pgvector: list vectors: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]float32)
	for rows.Next() {
		var (
			id  string
			vec pgvec.Vector
		)
		if err := rows.Scan(&id, &vec); err != nil {
			return nil, fmt.Errorf("pgvector: scan: %w", err)
		}
		out[id] = vec.Slice()
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector: list rows: %w", err)
	}
	return out, nil
}

// DeleteDocument removes every record of a document.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE document_id = $1", s.table), documentID); err != nil {
		return fmt.Errorf("pgvector: delete: %w", err)
	}
	return nil
}

// Dimensions returns the declared vector size.
func (s *Store) Dimensions() int { return s.dims }

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
