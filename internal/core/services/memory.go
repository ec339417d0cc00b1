package services

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/custodia-labs/finrag/internal/core/domain"
)

// TokenEstimator approximates the token count of a string.
type TokenEstimator func(text string) int

// EstimateTokens assumes roughly four characters per token.
func EstimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

// MemoryVariables is the rendered conversation history.
type MemoryVariables struct {
	// Turns is the structured history. Always set.
	Turns []domain.Turn

	// Text holds "User: ..." / "Assistant: ..." lines when requested.
	Text string
}

// MemoryOption configures a ConversationMemory.
type MemoryOption func(*ConversationMemory)

// WithMaxHistory sets the number of exchanges retained.
func WithMaxHistory(n int) MemoryOption {
	return func(m *ConversationMemory) {
		if n > 0 {
			m.maxHistory = n
		}
	}
}

// WithMaxTokens sets the estimated token budget.
func WithMaxTokens(n int) MemoryOption {
	return func(m *ConversationMemory) {
		if n > 0 {
			m.maxTokens = n
		}
	}
}

// WithTokenEstimator replaces the default estimator.
func WithTokenEstimator(fn TokenEstimator) MemoryOption {
	return func(m *ConversationMemory) {
		if fn != nil {
			m.estimate = fn
		}
	}
}

// ConversationMemory keeps a bounded window of recent turns.
// It is safe for concurrent use.
type ConversationMemory struct {
	mu         sync.Mutex
	turns      []domain.Turn
	maxHistory int
	maxTokens  int
	estimate   TokenEstimator
}

// NewConversationMemory creates an empty memory.
func NewConversationMemory(opts ...MemoryOption) *ConversationMemory {
	m := &ConversationMemory{
		maxHistory: domain.DefaultMaxHistory,
		maxTokens:  domain.DefaultMaxTokens,
		estimate:   EstimateTokens,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MaxHistory returns the number of exchanges retained.
func (m *ConversationMemory) MaxHistory() int {
	return m.maxHistory
}

// MaxTokenLimit returns the estimated token budget.
func (m *ConversationMemory) MaxTokenLimit() int {
	return m.maxTokens
}

// SaveContext records one exchange and trims the history.
func (m *ConversationMemory) SaveContext(input, output string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.turns = append(m.turns,
		domain.Turn{Role: domain.RoleUser, Content: input},
		domain.Turn{Role: domain.RoleAssistant, Content: output},
	)
	m.trim()
}

// LoadMemoryVariables returns the history, rendered as text when asString.
func (m *ConversationMemory) LoadMemoryVariables(asString bool) MemoryVariables {
	m.mu.Lock()
	defer m.mu.Unlock()

	vars := MemoryVariables{Turns: m.copyTurns()}
	if asString {
		vars.Text = formatTurns(vars.Turns)
	}
	return vars
}

// Turns returns a copy of the retained turns, oldest first.
func (m *ConversationMemory) Turns() []domain.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copyTurns()
}

// Clear drops all turns.
func (m *ConversationMemory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = nil
}

// Restore replaces the history with turns, applying the usual limits.
func (m *ConversationMemory) Restore(turns []domain.Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append([]domain.Turn(nil), turns...)
	m.trim()
}

// trim drops the oldest turns, first by count and then by token budget.
// The newest turn is always kept. Callers hold mu.
func (m *ConversationMemory) trim() {
	if limit := m.maxHistory * 2; len(m.turns) > limit {
		m.turns = m.turns[len(m.turns)-limit:]
	}

	total := 0
	for _, t := range m.turns {
		total += m.estimate(t.Content)
	}
	for total > m.maxTokens && len(m.turns) > 1 {
		total -= m.estimate(m.turns[0].Content)
		m.turns = m.turns[1:]
	}
}

func (m *ConversationMemory) copyTurns() []domain.Turn {
	out := make([]domain.Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

func formatTurns(turns []domain.Turn) string {
	lines := make([]string, len(turns))
	for i, t := range turns {
		lines[i] = t.Role.Title() + ": " + t.Content
	}
	return strings.Join(lines, "\n")
}
