// Package domain defines the core business entities for finrag.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: Text plus provenance metadata, produced by a loader or fetcher
//   - Chunk: A bounded, indexed fragment of a document
//   - Record: A chunk as held by a vector store, with its embedding
//   - Where: A store-neutral metadata predicate
//   - Answer: The result of a retrieval-augmented query
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
