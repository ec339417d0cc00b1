package driving

import (
	"context"

	"github.com/custodia-labs/finrag/internal/core/domain"
)

// QueryService answers questions from the indexed documents.
type QueryService interface {
	// Query retrieves relevant chunks and generates an answer. Generation
	// failures are reported in Answer.Error rather than returned.
	Query(ctx context.Context, question string, opts domain.QueryOptions) (*domain.Answer, error)

	// QuerySimple returns only the answer text.
	QuerySimple(ctx context.Context, question string) (string, error)

	// Search performs retrieval only.
	Search(ctx context.Context, question string, opts domain.QueryOptions) ([]domain.Hit, error)
}

// QueryParser turns free text into a query string and structured filters.
type QueryParser interface {
	// Parse parses text. When extractFilters is false the text is kept whole.
	Parse(text string, extractFilters bool) (*domain.ParsedQuery, error)
}
