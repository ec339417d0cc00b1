package services

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/finrag/internal/core/domain"
)

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 1, EstimateTokens("€€€€"))
}

func TestNewConversationMemory_Defaults(t *testing.T) {
	m := NewConversationMemory()
	assert.Equal(t, 5, m.MaxHistory())
	assert.Equal(t, 2000, m.MaxTokenLimit())
	assert.Empty(t, m.Turns())
}

func TestConversationMemory_SaveContext(t *testing.T) {
	m := NewConversationMemory()

	m.SaveContext("What was revenue?", "Revenue was $394.3 billion.")

	turns := m.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, domain.Turn{Role: domain.RoleUser, Content: "What was revenue?"}, turns[0])
	assert.Equal(t, domain.Turn{Role: domain.RoleAssistant, Content: "Revenue was $394.3 billion."}, turns[1])
}

func TestConversationMemory_TrimsByHistory(t *testing.T) {
	m := NewConversationMemory(WithMaxHistory(2))

	for i := range 5 {
		m.SaveContext(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	turns := m.Turns()
	require.Len(t, turns, 4)
	assert.Equal(t, "q3", turns[0].Content)
	assert.Equal(t, "a4", turns[3].Content)
}

func TestConversationMemory_TrimsByTokens(t *testing.T) {
	m := NewConversationMemory(WithMaxTokens(10))

	m.SaveContext(strings.Repeat("a", 20), strings.Repeat("b", 20))
	m.SaveContext(strings.Repeat("c", 16), strings.Repeat("d", 16))

	turns := m.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, strings.Repeat("c", 16), turns[0].Content)
}

func TestConversationMemory_KeepsNewestTurnOverBudget(t *testing.T) {
	m := NewConversationMemory(WithMaxTokens(1))

	m.SaveContext("question", strings.Repeat("x", 400))

	turns := m.Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, domain.RoleAssistant, turns[0].Role)
}

func TestConversationMemory_CustomEstimator(t *testing.T) {
	words := func(s string) int { return len(strings.Fields(s)) }
	m := NewConversationMemory(WithMaxTokens(3), WithTokenEstimator(words))

	m.SaveContext("one two", "three four")

	turns := m.Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, "three four", turns[0].Content)
}

func TestConversationMemory_LoadMemoryVariables(t *testing.T) {
	m := NewConversationMemory()
	m.SaveContext("Hi", "Hello")

	structured := m.LoadMemoryVariables(false)
	assert.Len(t, structured.Turns, 2)
	assert.Empty(t, structured.Text)

	text := m.LoadMemoryVariables(true)
	assert.Equal(t, "User: Hi\nAssistant: Hello", text.Text)
}

func TestConversationMemory_ClearAndRestore(t *testing.T) {
	m := NewConversationMemory(WithMaxHistory(1))
	m.SaveContext("q", "a")

	m.Clear()
	assert.Empty(t, m.Turns())

	m.Restore([]domain.Turn{
		{Role: domain.RoleUser, Content: "q1"},
		{Role: domain.RoleAssistant, Content: "a1"},
		{Role: domain.RoleUser, Content: "q2"},
		{Role: domain.RoleAssistant, Content: "a2"},
	})
	turns := m.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "q2", turns[0].Content)
}

func TestConversationMemory_TurnsReturnsCopy(t *testing.T) {
	m := NewConversationMemory()
	m.SaveContext("q", "a")

	turns := m.Turns()
	turns[0].Content = "changed"

	assert.Equal(t, "q", m.Turns()[0].Content)
}

func TestConversationMemory_ConcurrentUse(t *testing.T) {
	m := NewConversationMemory(WithMaxHistory(3))

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.SaveContext(fmt.Sprintf("q%d", i), "a")
			_ = m.LoadMemoryVariables(true)
		}(i)
	}
	wg.Wait()

	assert.Len(t, m.Turns(), 6)
}
