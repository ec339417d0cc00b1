package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/finrag/internal/core/domain"
)

func TestParse_PrintsParsedQuery(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "parse", "ticker: AAPL revenue from 2023-01-01")
	require.NoError(t, err)

	var parsed domain.ParsedQuery
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, "revenue", parsed.QueryText)
	assert.Equal(t, "AAPL", parsed.Filters.Ticker)
	assert.Equal(t, "2023-01-01", parsed.Filters.DateFrom)
}

func TestParse_NoFilters(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "parse", "--no-filters", "ticker: AAPL revenue")
	require.NoError(t, err)

	var parsed domain.ParsedQuery
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, "ticker: AAPL revenue", parsed.QueryText)
	assert.True(t, parsed.Filters.IsEmpty())
}

func TestParse_RequiresArgs(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "parse")
	assert.Error(t, err)
}
