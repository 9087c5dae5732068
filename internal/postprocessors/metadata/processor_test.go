package metadata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/plancite/internal/core/domain"
)

func chunk(box domain.BoundingBox) domain.Chunk {
	return domain.Chunk{
		ID:         domain.ChunkID("doc", 0),
		DocumentID: "doc",
		Content:    "FIRE   RATED\tASSEMBLY\n  UL  U419 ",
		PageNumber: 2,
		BBox:       box,
		Metadata: domain.ChunkMetadata{
			SchemaVersion:    domain.MetadataSchemaVersion,
			SourceFilename:   "A-501.pdf",
			PageNumber:       2,
			BBox:             box,
			ElementCategory:  domain.CategoryText,
			ExtractionMethod: domain.MethodNative,
		},
	}
}

func TestProcessor_NormalisesContent(t *testing.T) {
	out, err := New().Process(context.Background(), nil, nil, []domain.Chunk{chunk(domain.NewBoundingBox(1, 1, 2, 2))})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "FIRE RATED ASSEMBLY\nUL U419", out[0].Content)
	assert.False(t, out[0].Metadata.BBoxInvalid)
}

func TestProcessor_FlagsInvalidBBox(t *testing.T) {
	box := domain.BoundingBox{X0: 5, Y0: 5, X1: 1, Y1: 1}
	out, err := New().Process(context.Background(), nil, nil, []domain.Chunk{chunk(box)})
	require.NoError(t, err)
	assert.True(t, out[0].Metadata.BBoxInvalid)
	assert.Equal(t, box, out[0].BBox)
}

func TestProcessor_RejectsIncompleteMetadata(t *testing.T) {
	c := chunk(domain.NewBoundingBox(1, 1, 2, 2))
	c.Metadata.SourceFilename = ""

	_, err := New().Process(context.Background(), nil, nil, []domain.Chunk{c})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.ErrorContains(t, err, domain.MetaSourceFilename)
}

func TestProcessor_RejectsDivergentGeometry(t *testing.T) {
	c := chunk(domain.NewBoundingBox(1, 1, 2, 2))
	c.Metadata.PageNumber = 3

	_, err := New().Process(context.Background(), nil, nil, []domain.Chunk{c})
	assert.ErrorContains(t, err, "out of sync")
}
