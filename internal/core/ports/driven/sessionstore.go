package driven

import (
	"context"

	"github.com/custodia-labs/finrag/internal/core/domain"
)

// SessionStore persists conversation turns between invocations.
type SessionStore interface {
	// Load returns the turns saved for session. An unknown session yields no turns.
	Load(ctx context.Context, session string) ([]domain.Turn, error)

	// Save replaces the turns saved for session.
	Save(ctx context.Context, session string, turns []domain.Turn) error

	// Delete removes a session.
	Delete(ctx context.Context, session string) error

	// List returns the names of all saved sessions.
	List(ctx context.Context) ([]string, error)

	// Close releases resources.
	Close() error
}
