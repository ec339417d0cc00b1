package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsedQuery_Spec(t *testing.T) {
	p := &ParsedQuery{
		QueryText: "revenue",
		Filters:   Filters{Ticker: "AAPL", DateFrom: "2023-01-01"},
	}

	spec := p.Spec(3)
	assert.Equal(t, QuerySpec{Question: "revenue", Filters: p.Filters, TopK: 3}, spec)

	opts := spec.Options()
	assert.Equal(t, 3, opts.TopK)
	assert.Equal(t, "AAPL", opts.Filters.Ticker)
	assert.Empty(t, opts.Contains)
}
