package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/plancite/internal/core/domain"
)

func TestDocumentStore_DocumentLifecycle(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	doc := &domain.Document{ID: "doc-1", Filename: "A-101.pdf", Pages: []domain.PageSize{{Width: 612, Height: 792}}}
	require.NoError(t, store.SaveDocument(ctx, doc))

	got, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "A-101.pdf", got.Filename)

	doc.Pages[0].Height = 1
	got, err = store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 792.0, got.Pages[0].Height, "store must not alias caller slices")

	_, err = store.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_SaveChunksReplaces(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	first := []domain.Chunk{testChunk("doc-1", 0, 1, "a"), testChunk("doc-1", 1, 1, "b"), testChunk("doc-1", 2, 2, "c")}
	require.NoError(t, store.SaveChunks(ctx, "doc-1", first))
	require.NoError(t, store.SaveChunks(ctx, "doc-2", []domain.Chunk{testChunk("doc-2", 0, 1, "z")}))

	count, err := store.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	require.NoError(t, store.SaveChunks(ctx, "doc-1", first[:1]))
	count, err = store.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = store.GetChunk(ctx, first[2].ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_GetChunksByIDSkipsMissing(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()
	c := testChunk("doc-1", 0, 1, "a")
	require.NoError(t, store.SaveChunks(ctx, "doc-1", []domain.Chunk{c}))

	got, err := store.GetChunksByID(ctx, []string{c.ID, "gone"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, c, got[c.ID])
}

func TestDocumentStore_ListChunksFilteredAndSorted(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()
	require.NoError(t, store.SaveChunks(ctx, "doc-1", []domain.Chunk{
		testChunk("doc-1", 0, 1, "a"), testChunk("doc-1", 1, 2, "b"),
	}))
	require.NoError(t, store.SaveChunks(ctx, "doc-2", []domain.Chunk{testChunk("doc-2", 0, 2, "c")}))

	all, err := store.ListChunks(ctx, domain.MetadataFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID, all[i].ID)
	}

	page2, err := store.ListChunks(ctx, domain.MetadataFilter{DocumentIDs: []string{"doc-1"}, PageNumber: 2})
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, "b", page2[0].Content)
}

func TestDocumentStore_DeleteDocument(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()
	require.NoError(t, store.SaveDocument(ctx, &domain.Document{ID: "doc-1"}))
	require.NoError(t, store.SaveChunks(ctx, "doc-1", []domain.Chunk{testChunk("doc-1", 0, 1, "a")}))

	require.NoError(t, store.DeleteDocument(ctx, "doc-1"))

	docs, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
	count, err := store.CountChunks(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDocumentStore_SaveRun(t *testing.T) {
	store := NewDocumentStore()
	require.NoError(t, store.SaveRun(context.Background(), &domain.IndexResult{RunID: "run-1", DocumentID: "doc-1"}))
	runs := store.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].RunID)
}
