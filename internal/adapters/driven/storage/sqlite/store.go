package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// DBFile is the database file name inside the data directory.
const DBFile = "plancite.db"

// Store owns the SQLite connection shared by the port adapters.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if needed) the database in dataDir and applies
// pending migrations. An empty dataDir means ~/.plancite.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".plancite")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBFile)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	migrations, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := s.migrate(migrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns the document registry backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// KeywordIndex returns the FTS5 keyword index backed by this store.
func (s *Store) KeywordIndex() driven.KeywordIndex {
	return &keywordIndex{store: s}
}

// VectorStore returns the vector store for vectors of length dims.
// Stored vectors of another length mean the embedding model changed, which
// fails with domain.ErrDimensionMismatch until the corpus is re-indexed.
func (s *Store) VectorStore(ctx context.Context, dims int) (driven.VectorStore, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("%w: vector dimensions must be positive", domain.ErrInvalidInput)
	}
	var other int
	err := s.db.QueryRowContext(ctx, "SELECT dims FROM vectors WHERE dims <> ? LIMIT 1", dims).Scan(&other)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("checking stored dimensions: %w", err)
	default:
		return nil, fmt.Errorf("%w: stored vectors have %d dimensions, embedding model produces %d; re-index with --force",
			domain.ErrDimensionMismatch, other, dims)
	}
	return &vectorStore{store: s, dims: dims}, nil
}

// migrate applies every NNN_*.up.sql newer than the recorded version.
func (s *Store) migrate(fsys fs.FS) error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}
	return nil
}

// filterClause renders f as a SQL condition over columns named
// document_id, page_number and element_category.
func filterClause(f domain.MetadataFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if len(f.DocumentIDs) > 0 {
		conds = append(conds, "document_id IN ("+placeholders(len(f.DocumentIDs))+")")
		for _, id := range f.DocumentIDs {
			args = append(args, id)
		}
	}
	if f.PageNumber > 0 {
		conds = append(conds, "page_number = ?")
		args = append(args, f.PageNumber)
	}
	if f.Category != "" {
		conds = append(conds, "element_category = ?")
		args = append(args, string(f.Category))
	}
	if len(conds) == 0 {
		return "1 = 1", nil
	}
	return strings.Join(conds, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// float32SliceToBytes encodes a vector as little-endian float32s.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice decodes a blob written by float32SliceToBytes.
func bytesToFloat32Slice(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// encodeChunk returns the persisted JSON record of c.
func encodeChunk(c *domain.Chunk) (string, error) {
	data, err := json.Marshal(c.Record())
	if err != nil {
		return "", fmt.Errorf("marshalling chunk %s: %w", c.ID, err)
	}
	return string(data), nil
}

// decodeChunk rebuilds a chunk from its columns and JSON record.
func decodeChunk(documentID string, ordinal int, record string) (*domain.Chunk, error) {
	var rec domain.ChunkRecord
	if err := json.Unmarshal([]byte(record), &rec); err != nil {
		return nil, fmt.Errorf("unmarshalling chunk record: %w", err)
	}
	meta, err := domain.ParseFlatMetadata(rec.Metadata)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", rec.ChunkID, err)
	}
	meta.EmbeddingProvider = rec.EmbeddingProvider
	meta.EmbeddingModel = rec.EmbeddingModel
	return &domain.Chunk{
		ID:         rec.ChunkID,
		DocumentID: documentID,
		Ordinal:    ordinal,
		Content:    rec.Content,
		PageNumber: meta.PageNumber,
		BBox:       meta.BBox,
		Metadata:   meta,
	}, nil
}
