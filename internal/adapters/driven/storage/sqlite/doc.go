// Package sqlite provides a SQLite-backed implementation of driven.VectorStore.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. One database file holds any number of
// collections; each VectorStore is bound to one of them.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// Metadata is stored as JSON and embeddings as little-endian float32 blobs.
//
// # Search
//
// Metadata predicates are translated to json_extract comparisons and text
// predicates to instr, so SQLite does the filtering. Cosine distance is then
// computed in Go over the remaining rows. This is a linear scan and suits
// collections of up to a few hundred thousand chunks.
//
// # Data Location
//
// By default, the database is stored at ~/.finrag/data/vectors.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
