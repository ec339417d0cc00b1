package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/finrag/internal/core/domain"
	"github.com/custodia-labs/finrag/internal/core/ports/driven"
	"github.com/custodia-labs/finrag/internal/logger"
)

var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// ConfigValidator checks provider settings against the live services
// before they are saved.
type ConfigValidator struct {
	timeout time.Duration
}

// NewConfigValidator creates a validator that gives each provider
// pingTimeout to answer.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{timeout: pingTimeout}
}

// ValidateEmbedding pings the embedding provider and embeds a probe text.
// A model that answers with an empty vector cannot index anything, so
// that is reported as an error too.
func (v *ConfigValidator) ValidateEmbedding(config *domain.EmbeddingSettings) error {
	svc, err := CreateEmbeddingService(config)
	if err != nil || svc == nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		return err
	}
	dims, err := svc.Dimensions(ctx)
	if err != nil {
		return err
	}
	if dims == 0 {
		return fmt.Errorf("%w: %s returned an empty embedding", domain.ErrEmbedding, svc.ModelName())
	}
	logger.Debug("embedding model %s: %d dimensions", svc.ModelName(), dims)
	return nil
}

// ValidateLLM pings the LLM provider.
func (v *ConfigValidator) ValidateLLM(config *domain.LLMSettings) error {
	svc, err := CreateLLMService(config)
	if err != nil || svc == nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()
	return svc.Ping(ctx)
}
