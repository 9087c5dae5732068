package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MetadataSchemaVersion is the current ChunkMetadata layout version.
const MetadataSchemaVersion = 1

// Document is the registry entry for an indexed PDF.
type Document struct {
	// ID is the caller-supplied document identifier.
	ID string `json:"id"`

	// Filename is the original file name.
	Filename string `json:"filename"`

	// ContentHash is the hex sha256 of the PDF bytes. It is empty after a
	// cancelled or incomplete run so the next run indexes again.
	ContentHash string `json:"content_hash"`

	// Pages holds each page's size in points, index 0 is page 1.
	Pages []PageSize `json:"pages"`

	// IndexedAt is when the document was last indexed.
	IndexedAt time.Time `json:"indexed_at"`
}

// PageCount returns the number of pages.
func (d Document) PageCount() int { return len(d.Pages) }

// Page returns the size of a 1-based page.
func (d Document) Page(page int) (PageSize, bool) {
	if page < 1 || page > len(d.Pages) {
		return PageSize{}, false
	}
	return d.Pages[page-1], true
}

// ChunkMetadata is the closed metadata schema carried by every chunk.
// Both indices store the same values so they never diverge.
type ChunkMetadata struct {
	// SchemaVersion is MetadataSchemaVersion at write time.
	SchemaVersion int

	// SourceFilename is the original file name.
	SourceFilename string

	// PageNumber is 1-based.
	PageNumber int

	// BBox duplicates the chunk bbox for flattened consumers.
	BBox BoundingBox

	// ElementCategory is the category of the chunk's first element.
	ElementCategory ElementCategory

	// SectionTitle is the nearest preceding title element, if any.
	SectionTitle string

	// ExtractionMethod records how the page was extracted.
	ExtractionMethod ExtractionMethod

	// BBoxInvalid is set when the bbox failed validation.
	BBoxInvalid bool

	// EmbeddingProvider and EmbeddingModel tag the stored vector.
	EmbeddingProvider string
	EmbeddingModel    string

	// Extra holds optional caller-supplied scalars.
	Extra map[string]string
}

// Flattened metadata keys.
const (
	MetaSchemaVersion    = "schema_version"
	MetaSourceFilename   = "source_filename"
	MetaPageNumber       = "page_number"
	MetaBBox             = "bbox"
	MetaElementCategory  = "element_category"
	MetaSectionTitle     = "section_title_inherited"
	MetaExtractionMethod = "extraction_method"
	MetaBBoxInvalid      = "bbox_invalid"
	MetaDocumentID       = "document_id"
)

// Validate reports missing or malformed required fields.
func (m ChunkMetadata) Validate() error {
	var missing []string
	if m.SchemaVersion < 1 || m.SchemaVersion > MetadataSchemaVersion {
		missing = append(missing, MetaSchemaVersion)
	}
	if m.SourceFilename == "" {
		missing = append(missing, MetaSourceFilename)
	}
	if m.PageNumber < 1 {
		missing = append(missing, MetaPageNumber)
	}
	if !m.ElementCategory.IsValid() {
		missing = append(missing, MetaElementCategory)
	}
	if m.ExtractionMethod != MethodNative && m.ExtractionMethod != MethodOCR {
		missing = append(missing, MetaExtractionMethod)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: chunk metadata: %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

// Flatten returns the persisted key to scalar map. bbox is a 4-element slice.
func (m ChunkMetadata) Flatten() map[string]any {
	out := make(map[string]any, 8+len(m.Extra))
	for k, v := range m.Extra {
		out[k] = v
	}
	b := m.BBox.Array()
	out[MetaSchemaVersion] = m.SchemaVersion
	out[MetaSourceFilename] = m.SourceFilename
	out[MetaPageNumber] = m.PageNumber
	out[MetaBBox] = b[:]
	out[MetaElementCategory] = string(m.ElementCategory)
	out[MetaSectionTitle] = m.SectionTitle
	out[MetaExtractionMethod] = string(m.ExtractionMethod)
	if m.BBoxInvalid {
		out[MetaBBoxInvalid] = true
	}
	return out
}

// ParseFlatMetadata rebuilds ChunkMetadata from a flattened map,
// typically one decoded from JSON.
func ParseFlatMetadata(flat map[string]any) (ChunkMetadata, error) {
	m := ChunkMetadata{}
	extra := map[string]string{}
	for k, v := range flat {
		switch k {
		case MetaSchemaVersion:
			m.SchemaVersion = toInt(v)
		case MetaSourceFilename:
			m.SourceFilename, _ = v.(string)
		case MetaPageNumber:
			m.PageNumber = toInt(v)
		case MetaBBox:
			vals, err := toFloats(v)
			if err != nil {
				return ChunkMetadata{}, err
			}
			box, err := BoundingBoxFromSlice(vals)
			if err != nil {
				return ChunkMetadata{}, err
			}
			m.BBox = box
		case MetaElementCategory:
			s, _ := v.(string)
			m.ElementCategory = ElementCategory(s)
		case MetaSectionTitle:
			m.SectionTitle, _ = v.(string)
		case MetaExtractionMethod:
			s, _ := v.(string)
			m.ExtractionMethod = ExtractionMethod(s)
		case MetaBBoxInvalid:
			m.BBoxInvalid, _ = v.(bool)
		default:
			extra[k] = fmt.Sprint(v)
		}
	}
	if len(extra) > 0 {
		m.Extra = extra
	}
	return m, m.Validate()
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}

func toFloats(v any) ([]float64, error) {
	switch vals := v.(type) {
	case []float64:
		return vals, nil
	case []any:
		out := make([]float64, len(vals))
		for i, x := range vals {
			f, ok := x.(float64)
			if !ok {
				return nil, fmt.Errorf("%w: bbox value %v", ErrInvalidInput, x)
			}
			out[i] = f
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: bbox has type %T", ErrInvalidInput, v)
}

// Chunk is the retrieval unit. It covers exactly one page and one bbox.
type Chunk struct {
	// ID is ChunkID(DocumentID, Ordinal).
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Ordinal is the chunk's position within the document.
	Ordinal int

	// Content is the chunk text.
	Content string

	// PageNumber is 1-based.
	PageNumber int

	// BBox is the union of the constituent elements' boxes.
	BBox BoundingBox

	// Metadata is the closed metadata record.
	Metadata ChunkMetadata
}

// ChunkID derives a stable, content-addressable chunk id.
// Re-indexing the same document yields the same ids.
func ChunkID(documentID string, ordinal int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s::%d", documentID, ordinal)))
	return hex.EncodeToString(sum[:])
}

// ChunkRecord is the persisted JSON form of a chunk.
type ChunkRecord struct {
	ChunkID           string         `json:"chunk_id"`
	Content           string         `json:"content"`
	Metadata          map[string]any `json:"metadata"`
	EmbeddingProvider string         `json:"embedding_provider,omitempty"`
	EmbeddingModel    string         `json:"embedding_model,omitempty"`
}

// Record returns the persisted form of the chunk.
func (c Chunk) Record() ChunkRecord {
	return ChunkRecord{
		ChunkID:           c.ID,
		Content:           c.Content,
		Metadata:          c.Metadata.Flatten(),
		EmbeddingProvider: c.Metadata.EmbeddingProvider,
		EmbeddingModel:    c.Metadata.EmbeddingModel,
	}
}

// EmbeddingRecord is a chunk's vector with its provenance.
type EmbeddingRecord struct {
	ChunkID  string
	Vector   []float32
	Provider string
	Model    string
}

// VectorRecord pairs a chunk with its embedding for vector store upserts.
type VectorRecord struct {
	Chunk     Chunk
	Embedding EmbeddingRecord
}

// MetadataFilter restricts retrieval to matching chunks. Zero fields match all.
type MetadataFilter struct {
	DocumentIDs []string
	PageNumber  int
	Category    ElementCategory
}

// IsEmpty reports whether the filter matches everything.
func (f MetadataFilter) IsEmpty() bool {
	return len(f.DocumentIDs) == 0 && f.PageNumber == 0 && f.Category == ""
}

// Matches reports whether a chunk passes the filter.
func (f MetadataFilter) Matches(c *Chunk) bool {
	if len(f.DocumentIDs) > 0 {
		found := false
		for _, id := range f.DocumentIDs {
			if id == c.DocumentID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.PageNumber > 0 && c.PageNumber != f.PageNumber {
		return false
	}
	if f.Category != "" && c.Metadata.ElementCategory != f.Category {
		return false
	}
	return true
}
