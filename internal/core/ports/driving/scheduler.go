package driving

import (
	"context"

	"github.com/custodia-labs/finrag/internal/core/domain"
)

// Scheduler runs background ingestion from external fetchers.
type Scheduler interface {
	// Start begins running scheduled polls.
	// Blocks until context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops all running tasks.
	Stop() error

	// PollOnce runs every fetcher once and ingests what they return.
	PollOnce(ctx context.Context) (*domain.BatchReport, error)
}
