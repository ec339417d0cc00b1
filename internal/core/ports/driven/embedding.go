package driven

import "context"

// EmbeddingService generates vector embeddings for text.
// Every method that talks to the provider wraps failures in domain.ErrEmbedding.
//
// Implementations:
//   - OpenAI (remote, text-embedding-3-*)
//   - Ollama (local, nomic-embed-text and friends)
type EmbeddingService interface {
	// EmbedQuery generates a vector for a single query text.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// EmbedDocuments generates one vector per text, in input order.
	// An empty input returns an empty result without calling the provider.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions discovers the vector length by embedding a probe text.
	// The result is not cached.
	Dimensions(ctx context.Context) (int, error)

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable without running inference.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
