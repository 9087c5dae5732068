// Package sqlite is the local storage backend, built on modernc.org/sqlite
// (pure Go, no cgo). One database file serves three ports:
//
//   - DocumentStore: document registry, chunk records and index runs
//   - KeywordIndex: FTS5 full-text index ranked with bm25()
//   - VectorStore: float32 blobs scanned exhaustively by cosine similarity
//
// # Schema
//
// Versioned migrations live in migrations/ as NNN_name.up.sql and
// NNN_name.down.sql pairs. Each up file records its own version.
//
// # Data Location
//
// The database is <data_dir>/plancite.db, by default ~/.plancite/plancite.db.
//
// # Thread Safety
//
// All operations are safe for concurrent use. SQLite runs in WAL mode with
// a busy timeout, so readers never wait for the single writer.
package sqlite
