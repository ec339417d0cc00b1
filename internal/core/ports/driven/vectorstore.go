package driven

import (
	"context"

	"github.com/custodia-labs/finrag/internal/core/domain"
)

// VectorStore is a named, persistent collection of records supporting
// similarity search. A store instance is bound to one collection.
//
// Failures and misuse wrap domain.ErrStore. A vector whose length differs
// from the collection's established dimension is rejected with
// domain.ErrDimensionMismatch.
type VectorStore interface {
	// Add stores chunks with their embeddings. ids may be nil, in which case
	// ids are generated. A record with an existing id is replaced.
	// Returns the ids in chunk order.
	Add(ctx context.Context, chunks []domain.Chunk, embeddings [][]float32, ids []string) ([]string, error)

	// QueryByEmbedding returns up to n records ordered by ascending distance.
	// where and whereDoc may be nil. An empty collection yields no hits and no error.
	QueryByEmbedding(
		ctx context.Context,
		vector []float32,
		n int,
		where domain.Where,
		whereDoc *domain.DocumentWhere,
	) ([]domain.Hit, error)

	// GetByIDs returns the records for ids that exist. Missing ids are omitted.
	// An empty ids slice is an error.
	GetByIDs(ctx context.Context, ids []string) ([]domain.Record, error)

	// GetAll returns every record in the collection.
	GetAll(ctx context.Context) ([]domain.Record, error)

	// Count returns the number of records in the collection.
	Count(ctx context.Context) (int, error)

	// Delete removes records by ids or by metadata predicate. Exactly one of
	// ids and where must be set. Returns the number of records removed.
	Delete(ctx context.Context, ids []string, where domain.Where) (int, error)

	// DeleteCollection removes the collection and all its records.
	DeleteCollection(ctx context.Context) error

	// Reset deletes and recreates the collection, leaving it empty and usable.
	Reset(ctx context.Context) error

	// Name returns the collection name.
	Name() string

	// Close releases resources.
	Close() error
}
