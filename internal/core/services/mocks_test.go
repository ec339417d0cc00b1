package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/finrag/internal/core/domain"
	"github.com/custodia-labs/finrag/internal/core/ports/driven"
)

// Mock implementations for pipeline and query engine tests.

// mockEmbedder returns a fixed-length vector derived from text length.
type mockEmbedder struct {
	dims      int
	err       error
	calls     int
	shortLast bool
	dropLast  bool
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{dims: 4}
}

func (m *mockEmbedder) vector(text string) []float32 {
	v := make([]float32, m.dims)
	for i := range v {
		v[i] = float32(len(text)%(i+2)) + 1
	}
	return v
}

func (m *mockEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.vector(text), nil
}

func (m *mockEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vector(t)
	}
	if m.shortLast && len(out) > 0 {
		out[len(out)-1] = out[len(out)-1][:m.dims-1]
	}
	if m.dropLast && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions(_ context.Context) (int, error) { return m.dims, nil }
func (m *mockEmbedder) ModelName() string                         { return "mock-embed" }
func (m *mockEmbedder) Ping(_ context.Context) error              { return m.err }
func (m *mockEmbedder) Close() error                              { return nil }

// mockStore records adds and serves canned hits.
type mockStore struct {
	mu        sync.Mutex
	added     []domain.Chunk
	addedIDs  []string
	vectors   [][]float32
	hits      []domain.Hit
	deletes   []domain.Where
	addErr    error
	deleteErr error
	queryErr  error
	lastN     int
	lastWhere domain.Where
	lastDoc   *domain.DocumentWhere
}

func (m *mockStore) Add(_ context.Context, chunks []domain.Chunk, embeddings [][]float32, ids []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addErr != nil {
		return nil, m.addErr
	}
	if ids == nil {
		ids = make([]string, len(chunks))
		for i := range chunks {
			ids[i] = fmt.Sprintf("id-%d", len(m.added)+i)
		}
	}
	m.addedIDs = append(m.addedIDs, ids...)
	m.added = append(m.added, chunks...)
	m.vectors = append(m.vectors, embeddings...)
	return ids, nil
}

func (m *mockStore) QueryByEmbedding(
	_ context.Context,
	_ []float32,
	n int,
	where domain.Where,
	whereDoc *domain.DocumentWhere,
) ([]domain.Hit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastN, m.lastWhere, m.lastDoc = n, where, whereDoc
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if len(m.hits) > n {
		return m.hits[:n], nil
	}
	return m.hits, nil
}

func (m *mockStore) GetByIDs(_ context.Context, _ []string) ([]domain.Record, error) { return nil, nil }
func (m *mockStore) GetAll(_ context.Context) ([]domain.Record, error)               { return nil, nil }
func (m *mockStore) Count(_ context.Context) (int, error)                            { return len(m.added), nil }
func (m *mockStore) Delete(_ context.Context, _ []string, where domain.Where) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	m.deletes = append(m.deletes, where)
	return 0, nil
}
func (m *mockStore) DeleteCollection(_ context.Context) error { return nil }
func (m *mockStore) Reset(_ context.Context) error            { return nil }
func (m *mockStore) Name() string                             { return "mock" }
func (m *mockStore) Close() error                             { return nil }

// mockLLM returns a fixed response and records the last prompt.
type mockLLM struct {
	response   string
	err        error
	lastPrompt string
}

func (m *mockLLM) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	m.lastPrompt = prompt
	return m.response, m.err
}

func (m *mockLLM) ModelName() string            { return "mock-llm" }
func (m *mockLLM) Ping(_ context.Context) error { return nil }
func (m *mockLLM) Close() error                 { return nil }

// mockPromptStore serves a fixed template.
type mockPromptStore struct {
	template string
	err      error
}

func (m *mockPromptStore) Load(_ string) (string, error) { return m.template, m.err }
func (m *mockPromptStore) Reload()                       {}

var (
	_ driven.EmbeddingService = (*mockEmbedder)(nil)
	_ driven.VectorStore      = (*mockStore)(nil)
	_ driven.LLMService       = (*mockLLM)(nil)
	_ driven.PromptStore      = (*mockPromptStore)(nil)
)

// mockConfigStore is an in-memory driven.ConfigStore.
type mockConfigStore struct {
	data    map[string]any
	saveErr error
}

func newMockConfigStore() *mockConfigStore {
	return &mockConfigStore{data: make(map[string]any)}
}

func (m *mockConfigStore) Get(key string) (any, bool) {
	v, ok := m.data[key]
	return v, ok
}

func (m *mockConfigStore) GetString(key string) string {
	s, _ := m.data[key].(string)
	return s
}

func (m *mockConfigStore) GetInt(key string) int {
	switch v := m.data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func (m *mockConfigStore) GetBool(key string) bool {
	b, _ := m.data[key].(bool)
	return b
}

func (m *mockConfigStore) GetStringSlice(key string) []string {
	switch v := m.data[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func (m *mockConfigStore) Set(key string, value any) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data[key] = value
	return nil
}

func (m *mockConfigStore) Save() error { return m.saveErr }
func (m *mockConfigStore) Load() error { return nil }
func (m *mockConfigStore) Path() string {
	return "memory"
}
