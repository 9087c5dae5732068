// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - PageExtractor: Produces positioned elements from one PDF page
//   - PDFInspector: Reports page geometry and isolates single pages
//   - DocumentStore: Document registry and chunk persistence
//   - KeywordIndex: Lexical search over chunk text
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - OCREngine: Remote OCR. Without it, only the text layer is read.
//   - EmbeddingService, VectorStore: Without them, retrieval is keyword-only.
//   - LLMService: Without it, answer generation is disabled.
//   - Reranker: Without it, fused order is final.
//   - DocumentLocker: Without it, an in-process lock is used.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or service package
package driven
