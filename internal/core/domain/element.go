package domain

import "fmt"

// ElementCategory classifies an extracted element.
type ElementCategory string

// Element categories.
const (
	CategoryText  ElementCategory = "text"
	CategoryTable ElementCategory = "table"
	CategoryImage ElementCategory = "image"
	CategoryTitle ElementCategory = "title"
)

// IsValid returns true if the category is recognised.
func (c ElementCategory) IsValid() bool {
	switch c {
	case CategoryText, CategoryTable, CategoryImage, CategoryTitle:
		return true
	default:
		return false
	}
}

// ParseElementCategory maps free-form engine labels onto a category.
// Unknown labels fall back to text.
func ParseElementCategory(s string) ElementCategory {
	switch ElementCategory(s) {
	case CategoryTable, CategoryImage, CategoryTitle:
		return ElementCategory(s)
	}
	switch s {
	case "heading", "header", "section_header", "Title":
		return CategoryTitle
	case "figure", "picture", "Image":
		return CategoryImage
	case "Table":
		return CategoryTable
	}
	return CategoryText
}

// ExtractionMethod records which strategy produced an element.
type ExtractionMethod string

// Extraction methods.
const (
	MethodNative ExtractionMethod = "native"
	MethodOCR    ExtractionMethod = "ocr"
)

// Alternate returns the other extraction method.
func (m ExtractionMethod) Alternate() ExtractionMethod {
	if m == MethodNative {
		return MethodOCR
	}
	return MethodNative
}

// ExtractionStrategy selects how pages are partitioned.
type ExtractionStrategy string

// Extraction strategies.
const (
	// StrategyNative reads the PDF text layer.
	StrategyNative ExtractionStrategy = "native"

	// StrategyOCR rasterises pages and runs OCR.
	StrategyOCR ExtractionStrategy = "ocr"

	// StrategyAuto uses the text layer and falls back to OCR for
	// pages without one.
	StrategyAuto ExtractionStrategy = "auto"
)

// IsValid returns true if the strategy is recognised.
func (s ExtractionStrategy) IsValid() bool {
	switch s {
	case StrategyNative, StrategyOCR, StrategyAuto:
		return true
	default:
		return false
	}
}

// SourcePDF is the input to the indexing pipeline.
type SourcePDF struct {
	// DocumentID identifies the document. Chunk ids derive from it.
	DocumentID string

	// Filename is the original file name, carried into chunk metadata.
	Filename string

	// Data is the raw PDF bytes.
	Data []byte
}

// Element is the smallest positioned unit extracted from a page.
// Elements are created once by the partitioner and never mutated.
type Element struct {
	// ID is unique within a partitioning run.
	ID string

	// PageNumber is 1-based.
	PageNumber int

	// Category classifies the element.
	Category ElementCategory

	// Text is the element's text content. Images may have none.
	Text string

	// BBox is in page points, bottom-left origin.
	BBox BoundingBox

	// Method records which extractor produced the element.
	Method ExtractionMethod

	// InvalidBBox flags geometry that failed validation. The box is kept as-is.
	InvalidBBox bool
}

// ElementID builds the element id for a page-local ordinal.
func ElementID(documentID string, page, ordinal int) string {
	return fmt.Sprintf("%s:p%d:e%d", documentID, page, ordinal)
}
