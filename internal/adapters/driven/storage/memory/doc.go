// Package memory provides in-memory implementations of the storage ports.
// They back tests and ephemeral runs and share the semantics of the
// SQLite adapters: idempotent upserts keyed by chunk id.
package memory
