// Package storage selects and opens the configured vector store backend.
package storage

import (
	"context"
	"fmt"

	"github.com/custodia-labs/finrag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/finrag/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/finrag/internal/adapters/driven/storage/weaviate"
	"github.com/custodia-labs/finrag/internal/core/domain"
	"github.com/custodia-labs/finrag/internal/core/ports/driven"
	"github.com/custodia-labs/finrag/internal/logger"
)

// OpenVectorStore opens the backend named by settings.Backend, bound to
// settings.Collection. An empty backend selects SQLite.
func OpenVectorStore(ctx context.Context, settings domain.StoreSettings) (driven.VectorStore, error) {
	collection := settings.Collection
	if collection == "" {
		collection = domain.DefaultCollection
	}
	backend := settings.Backend
	if backend == "" {
		backend = domain.StoreBackendSQLite
	}

	logger.Debug("opening %s vector store, collection %s", backend, collection)

	switch backend {
	case domain.StoreBackendSQLite:
		store, err := sqlite.NewVectorStore(settings.Path, collection)
		if err != nil {
			return nil, err
		}
		return store, nil

	case domain.StoreBackendMemory:
		return memory.NewVectorStore(collection), nil

	case domain.StoreBackendWeaviate:
		store, err := weaviate.NewVectorStore(ctx, weaviate.Config{
			URL:        settings.URL,
			APIKey:     settings.APIKey,
			Collection: collection,
		})
		if err != nil {
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", domain.ErrStoreUnavailable, backend)
	}
}
