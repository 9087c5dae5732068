package pgvector

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/plancite/internal/core/domain"
)

const testDSNEnv = "PLANCITE_TEST_POSTGRES_DSN"

func TestWhereClause(t *testing.T) {
	tests := []struct {
		name     string
		filter   domain.MetadataFilter
		wantSQL  string
		wantArgs []any
		wantNext int
	}{
		{"empty", domain.MetadataFilter{}, "TRUE", nil, 2},
		{
			"all fields",
			domain.MetadataFilter{DocumentIDs: []string{"a", "b"}, PageNumber: 3, Category: domain.CategoryTable},
			"TRUE AND document_id = ANY($2) AND page_number = $3 AND element_category = $4",
			[]any{[]string{"a", "b"}, 3, "table"},
			5,
		},
		{
			"page only",
			domain.MetadataFilter{PageNumber: 7},
			"TRUE AND page_number = $2",
			[]any{7},
			3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, next := whereClause(tt.filter, 2)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
			assert.Equal(t, tt.wantNext, next)
		})
	}
}

func TestSearchSQL(t *testing.T) {
	sql, args := searchSQL(`"plancite_chunks"`, domain.MetadataFilter{DocumentIDs: []string{"d"}}, 10)
	assert.Equal(t,
		`SELECT chunk_id, 1 - (embedding <=> $1) AS similarity FROM "plancite_chunks" `+
			`WHERE TRUE AND document_id = ANY($2) ORDER BY embedding <=> $1, chunk_id LIMIT $3`, sql)
	assert.Equal(t, []any{[]string{"d"}, 10}, args)
}

func TestCreateTableSQL(t *testing.T) {
	sql := createTableSQL(`"t"`, 768)
	assert.Contains(t, sql, `CREATE TABLE IF NOT EXISTS "t"`)
	assert.Contains(t, sql, "vector(768)")
	assert.Contains(t, createIndexSQL(`"t"`, "t"), `"t_document_idx"`)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(context.Background(), Config{Dimensions: 3})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = New(context.Background(), Config{DSN: "postgres://localhost/x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func testChunk(docID string, ordinal, page int) domain.Chunk {
	box := domain.NewBoundingBox(10, 10, 100, 40)
	return domain.Chunk{
		ID: domain.ChunkID(docID, ordinal), DocumentID: docID, Ordinal: ordinal,
		Content: "chunk", PageNumber: page, BBox: box,
		Metadata: domain.ChunkMetadata{
			SchemaVersion: domain.MetadataSchemaVersion, SourceFilename: docID + ".pdf", PageNumber: page,
			BBox: box, ElementCategory: domain.CategoryText, ExtractionMethod: domain.MethodNative,
		},
	}
}

func TestStore_Live(t *testing.T) {
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDSNEnv)
	}
	ctx := context.Background()
	store, err := New(ctx, Config{DSN: dsn, Table: "plancite_test_chunks", Dimensions: 3})
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = store.pool.Exec(ctx, `DROP TABLE IF EXISTS "plancite_test_chunks"`)
		store.Close()
	})

	a, b := testChunk("doc-1", 0, 1), testChunk("doc-1", 1, 2)
	require.NoError(t, store.Upsert(ctx, []domain.VectorRecord{
		{Chunk: a, Embedding: domain.EmbeddingRecord{ChunkID: a.ID, Vector: []float32{1, 0, 0}, Provider: "p", Model: "m"}},
		{Chunk: b, Embedding: domain.EmbeddingRecord{ChunkID: b.ID, Vector: []float32{0, 1, 0}, Provider: "p", Model: "m"}},
	}))

	hits, err := store.Search(ctx, []float32{1, 0.1, 0}, 5, domain.MetadataFilter{})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, a.ID, hits[0].ChunkID)

	hits, err = store.Search(ctx, []float32{1, 0, 0}, 5, domain.MetadataFilter{PageNumber: 2})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, b.ID, hits[0].ChunkID)

	vecs, err := store.Vectors(ctx, domain.MetadataFilter{})
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0}, vecs[b.ID])

	require.NoError(t, store.DeleteDocument(ctx, "doc-1"))
	vecs, err = store.Vectors(ctx, domain.MetadataFilter{})
	require.NoError(t, err)
	assert.Empty(t, vecs)

	_, err = New(ctx, Config{DSN: dsn, Table: "plancite_test_chunks", Dimensions: 4})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}
