package memory

import "github.com/custodia-labs/plancite/internal/core/domain"

func testChunk(docID string, ordinal, page int, content string) domain.Chunk {
	box := domain.NewBoundingBox(72, 700-float64(ordinal)*20, 300, 720-float64(ordinal)*20)
	return domain.Chunk{
		ID:         domain.ChunkID(docID, ordinal),
		DocumentID: docID,
		Ordinal:    ordinal,
		Content:    content,
		PageNumber: page,
		BBox:       box,
		Metadata: domain.ChunkMetadata{
			SchemaVersion:    domain.MetadataSchemaVersion,
			SourceFilename:   docID + ".pdf",
			PageNumber:       page,
			BBox:             box,
			ElementCategory:  domain.CategoryText,
			ExtractionMethod: domain.MethodNative,
		},
	}
}
