package driven

import (
	"context"

	"github.com/custodia-labs/finrag/internal/core/domain"
)

// DocumentFetcher produces documents from an external source such as a news
// feed. Fetchers own their rate limiting.
type DocumentFetcher interface {
	// Name identifies the fetcher in logs.
	Name() string

	// Fetch returns the documents currently available from the source.
	Fetch(ctx context.Context) ([]domain.Document, error)
}
