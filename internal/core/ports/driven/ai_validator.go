package driven

import "github.com/custodia-labs/finrag/internal/core/domain"

// AIConfigValidator checks provider settings against the live service.
// Settings that name no provider are not an error.
type AIConfigValidator interface {
	// ValidateEmbedding reaches the embedding provider and embeds a probe.
	ValidateEmbedding(config *domain.EmbeddingSettings) error

	// ValidateLLM reaches the LLM provider.
	ValidateLLM(config *domain.LLMSettings) error
}
