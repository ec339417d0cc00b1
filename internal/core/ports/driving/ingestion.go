package driving

import (
	"context"

	"github.com/custodia-labs/finrag/internal/core/domain"
)

// IngestionService turns documents into stored, searchable chunks.
type IngestionService interface {
	// ProcessDocument ingests one file. Failures are returned as
	// *domain.PipelineError carrying the failed stage.
	ProcessDocument(ctx context.Context, path string, opts domain.IngestOptions) ([]string, error)

	// ProcessDocuments ingests files one after another. A failing file is
	// recorded in the report and skipped.
	ProcessDocuments(ctx context.Context, paths []string, opts domain.IngestOptions) (*domain.BatchReport, error)

	// ProcessDocumentObjects ingests already-materialised documents, skipping
	// the file loader.
	ProcessDocumentObjects(
		ctx context.Context,
		docs []domain.Document,
		opts domain.IngestOptions,
	) (*domain.BatchReport, error)

	// SearchSimilar embeds text and returns the n closest chunks.
	SearchSimilar(ctx context.Context, text string, n int) ([]domain.Hit, error)
}
