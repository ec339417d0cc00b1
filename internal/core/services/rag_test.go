package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/finrag/internal/core/domain"
)

func testHits() []domain.Hit {
	return []domain.Hit{
		{
			Record: domain.Record{
				ID:      "aapl-0",
				Content: "Apple reported revenue of $394.3 billion.",
				Metadata: domain.Metadata{
					domain.MetaSource:   "aapl-10k.md",
					domain.MetaTicker:   "AAPL",
					domain.MetaFormType: "10-K",
					domain.MetaDate:     "2023-11-03T00:00:00Z",
				},
			},
			Distance: 0.12,
		},
		{
			Record: domain.Record{
				ID:       "news-0",
				Content:  "Analysts expect services growth.",
				Metadata: domain.Metadata{domain.MetaURL: "https://news.example.com/1"},
			},
			Distance: 0.3,
		},
	}
}

func TestQueryEngine_Query(t *testing.T) {
	store := &mockStore{hits: testHits()}
	llm := &mockLLM{response: "  Revenue was $394.3 billion.  "}
	engine := NewQueryEngine(newMockEmbedder(), store, llm)

	answer, err := engine.Query(context.Background(), "What was Apple's revenue?", domain.QueryOptions{})

	require.NoError(t, err)
	assert.Equal(t, "Revenue was $394.3 billion.", answer.Text)
	assert.Equal(t, 2, answer.ChunksUsed)
	assert.False(t, answer.Failed())
	require.Len(t, answer.Sources, 2)
	assert.Equal(t, "aapl-10k.md", answer.Sources[0].String(domain.MetaSource))

	assert.Equal(t, domain.DefaultTopK, store.lastN)
	assert.Contains(t, llm.lastPrompt,
		"[Source: aapl-10k.md | AAPL | 10-K | 2023-11-03T00:00:00Z]\nApple reported revenue of $394.3 billion.")
	assert.Contains(t, llm.lastPrompt,
		"\n\n[Source: https://news.example.com/1]\nAnalysts expect services growth.")
	assert.Contains(t, llm.lastPrompt, "Question: What was Apple's revenue?")
	assert.Contains(t, llm.lastPrompt, "Conversation so far:\n(none)")
}

func TestQueryEngine_Query_NoHits(t *testing.T) {
	llm := &mockLLM{response: "should not be called"}
	engine := NewQueryEngine(newMockEmbedder(), &mockStore{}, llm)

	answer, err := engine.Query(context.Background(), "What was revenue?", domain.QueryOptions{})

	require.NoError(t, err)
	assert.Equal(t, domain.NoInformationAnswer, answer.Text)
	assert.Equal(t, 0, answer.ChunksUsed)
	assert.NotNil(t, answer.Sources)
	assert.Empty(t, answer.Sources)
	assert.Empty(t, llm.lastPrompt)
}

func TestQueryEngine_Query_EmptyQuestion(t *testing.T) {
	engine := NewQueryEngine(newMockEmbedder(), &mockStore{}, &mockLLM{})

	_, err := engine.Query(context.Background(), "   ", domain.QueryOptions{})

	assert.ErrorIs(t, err, domain.ErrQuery)
}

func TestQueryEngine_Query_GenerationFailure(t *testing.T) {
	store := &mockStore{hits: testHits()}
	llm := &mockLLM{err: errors.New("rate limited")}
	memory := NewConversationMemory()
	engine := NewQueryEngine(newMockEmbedder(), store, llm, WithMemory(memory))

	answer, err := engine.Query(context.Background(), "What was revenue?", domain.QueryOptions{})

	require.NoError(t, err)
	assert.True(t, answer.Failed())
	assert.True(t, strings.HasPrefix(answer.Text, "Failed to generate an answer: "))
	assert.Contains(t, answer.Error, "rate limited")
	assert.Equal(t, 2, answer.ChunksUsed)
	assert.Len(t, answer.Sources, 2)
	assert.Empty(t, memory.Turns())
}

func TestQueryEngine_Query_NilLLM(t *testing.T) {
	engine := NewQueryEngine(newMockEmbedder(), &mockStore{hits: testHits()}, nil)

	answer, err := engine.Query(context.Background(), "What was revenue?", domain.QueryOptions{})

	require.NoError(t, err)
	assert.True(t, answer.Failed())
	assert.Contains(t, answer.Error, domain.ErrLLMUnavailable.Error())
}

func TestQueryEngine_Query_RetrievalFailures(t *testing.T) {
	t.Run("embedding", func(t *testing.T) {
		embedder := newMockEmbedder()
		embedder.err = errors.New("model not found")
		engine := NewQueryEngine(embedder, &mockStore{}, &mockLLM{})

		_, err := engine.Query(context.Background(), "revenue", domain.QueryOptions{})

		requireStage(t, err, domain.StageEmbedQuery)
		assert.ErrorIs(t, err, domain.ErrEmbedding)
	})

	t.Run("no embedder", func(t *testing.T) {
		engine := NewQueryEngine(nil, &mockStore{}, &mockLLM{})

		_, err := engine.Query(context.Background(), "revenue", domain.QueryOptions{})

		requireStage(t, err, domain.StageEmbedQuery)
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	})

	t.Run("store", func(t *testing.T) {
		engine := NewQueryEngine(newMockEmbedder(), &mockStore{queryErr: domain.ErrDimensionMismatch}, &mockLLM{})

		_, err := engine.Query(context.Background(), "revenue", domain.QueryOptions{})

		requireStage(t, err, domain.StageRetrieve)
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})
}

func TestQueryEngine_Query_OptionsPassedToStore(t *testing.T) {
	store := &mockStore{hits: testHits()}
	engine := NewQueryEngine(newMockEmbedder(), store, &mockLLM{response: "ok"}, WithTopK(3))

	_, err := engine.Query(context.Background(), "revenue", domain.QueryOptions{
		TopK:     1,
		Filters:  domain.Filters{Ticker: "AAPL"},
		Contains: "billion",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, store.lastN)
	assert.Equal(t, domain.Cond{Field: domain.MetaTicker, Op: domain.OpEq, Value: "AAPL"}, store.lastWhere)
	assert.Equal(t, &domain.DocumentWhere{Contains: "billion"}, store.lastDoc)

	_, err = engine.Query(context.Background(), "revenue", domain.QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, store.lastN)
	assert.Nil(t, store.lastWhere)
	assert.Nil(t, store.lastDoc)
}

func TestQueryEngine_Query_WithMemory(t *testing.T) {
	llm := &mockLLM{response: "Revenue was $394.3 billion."}
	memory := NewConversationMemory()
	engine := NewQueryEngine(newMockEmbedder(), &mockStore{hits: testHits()}, llm, WithMemory(memory))

	_, err := engine.Query(context.Background(), "What was revenue?", domain.QueryOptions{})
	require.NoError(t, err)

	llm.response = "It grew 2%."
	_, err = engine.Query(context.Background(), "How did it change?", domain.QueryOptions{})
	require.NoError(t, err)

	assert.Contains(t, llm.lastPrompt, "User: What was revenue?\nAssistant: Revenue was $394.3 billion.")
	assert.Len(t, memory.Turns(), 4)
	assert.Same(t, memory, engine.Memory())
}

func TestQueryEngine_Query_PromptStore(t *testing.T) {
	t.Run("custom template", func(t *testing.T) {
		llm := &mockLLM{response: "ok"}
		prompts := &mockPromptStore{template: "H=%s C=%s Q=%s"}
		engine := NewQueryEngine(newMockEmbedder(), &mockStore{hits: testHits()[:1]}, llm, WithPromptStore(prompts))

		_, err := engine.Query(context.Background(), "revenue?", domain.QueryOptions{})

		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(llm.lastPrompt, "H=(none) C=[Source: aapl-10k.md"))
		assert.True(t, strings.HasSuffix(llm.lastPrompt, "Q=revenue?"))
	})

	t.Run("falls back on error", func(t *testing.T) {
		llm := &mockLLM{response: "ok"}
		prompts := &mockPromptStore{err: errors.New("permission denied")}
		engine := NewQueryEngine(newMockEmbedder(), &mockStore{hits: testHits()}, llm, WithPromptStore(prompts))

		_, err := engine.Query(context.Background(), "revenue?", domain.QueryOptions{})

		require.NoError(t, err)
		assert.Contains(t, llm.lastPrompt, "financial research assistant")
	})
}

func TestQueryEngine_QuerySimple(t *testing.T) {
	engine := NewQueryEngine(newMockEmbedder(), &mockStore{hits: testHits()}, &mockLLM{response: "42"})

	text, err := engine.QuerySimple(context.Background(), "answer?")

	require.NoError(t, err)
	assert.Equal(t, "42", text)
}

func TestQueryEngine_Search(t *testing.T) {
	store := &mockStore{hits: testHits()}
	llm := &mockLLM{}
	engine := NewQueryEngine(newMockEmbedder(), store, llm)

	hits, err := engine.Search(context.Background(), "revenue", domain.QueryOptions{TopK: 1})

	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "aapl-0", hits[0].ID)
	assert.Empty(t, llm.lastPrompt)
}

func TestProvenance(t *testing.T) {
	tests := []struct {
		name string
		md   domain.Metadata
		want string
	}{
		{"source only", domain.Metadata{"source": "a.md"}, "a.md"},
		{"filename fallback", domain.Metadata{"filename": "b.txt", "date": "2024-01-01"}, "b.txt | 2024-01-01"},
		{"title fallback", domain.Metadata{"title": "Q3 call"}, "Q3 call"},
		{"unknown", domain.Metadata{"ticker": "MSFT"}, "unknown | MSFT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, provenance(tt.md))
		})
	}
}
