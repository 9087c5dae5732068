package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/plancite/internal/core/domain"
)

func seededKeywordIndex(t *testing.T) *KeywordIndex {
	t.Helper()
	idx := NewKeywordIndex()
	require.NoError(t, idx.Index(context.Background(), []domain.Chunk{
		testChunk("doc-1", 0, 1, "Provide fire blocking at each floor line."),
		testChunk("doc-1", 1, 1, "Fire rated wall assembly, fire tape all joints."),
		testChunk("doc-1", 2, 2, "Door hardware schedule."),
		testChunk("doc-2", 0, 1, "Concrete slab on grade with vapor retarder."),
	}))
	return idx
}

func TestKeywordIndex_RanksByBM25(t *testing.T) {
	idx := seededKeywordIndex(t)

	hits, err := idx.Search(context.Background(), "fire", 10, domain.MetadataFilter{})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, domain.ChunkID("doc-1", 1), hits[0].ChunkID, "two occurrences outrank one")
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestKeywordIndex_NoMatchAndEmptyQuery(t *testing.T) {
	idx := seededKeywordIndex(t)

	hits, err := idx.Search(context.Background(), "elevator", 10, domain.MetadataFilter{})
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = idx.Search(context.Background(), "  ", 10, domain.MetadataFilter{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestKeywordIndex_FilterAndLimit(t *testing.T) {
	idx := seededKeywordIndex(t)

	hits, err := idx.Search(context.Background(), "fire slab", 10, domain.MetadataFilter{DocumentIDs: []string{"doc-2"}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, domain.ChunkID("doc-2", 0), hits[0].ChunkID)

	hits, err = idx.Search(context.Background(), "fire slab door", 1, domain.MetadataFilter{})
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestKeywordIndex_ReindexAndDelete(t *testing.T) {
	idx := seededKeywordIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []domain.Chunk{testChunk("doc-1", 2, 2, "Elevator pit ladder.")}))
	hits, err := idx.Search(ctx, "door", 10, domain.MetadataFilter{})
	require.NoError(t, err)
	assert.Empty(t, hits, "replaced content must not match")

	require.NoError(t, idx.DeleteDocument(ctx, "doc-1"))
	assert.Equal(t, 1, idx.Len())
}
