// Package domain defines the core business entities for plancite.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - BoundingBox: a rectangle in page-point space, bottom-left origin
//   - Element: a positioned unit extracted from one PDF page
//   - Chunk: a retrieval unit built from elements, carrying one bbox
//   - SearchResult, Answer, Citation: retrieval and generation outputs
//   - ClusterAssignment: semantic grouping of chunks
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
