package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/finrag/internal/core/domain"
)

func TestFilterBuilder_BuildWhere_Empty(t *testing.T) {
	b := NewFilterBuilder()
	assert.Nil(t, b.BuildWhere(domain.Filters{}))
}

func TestFilterBuilder_BuildWhere_SingleCondition(t *testing.T) {
	b := NewFilterBuilder()

	where := b.BuildWhere(domain.Filters{Ticker: "AAPL"})

	require.NotNil(t, where)
	assert.Equal(t, domain.Cond{Field: "ticker", Op: domain.OpEq, Value: "AAPL"}, where)
	assert.Equal(t, map[string]any{"ticker": map[string]any{"$eq": "AAPL"}}, where.Map())
}

func TestFilterBuilder_BuildWhere_Combined(t *testing.T) {
	b := NewFilterBuilder()

	where := b.BuildWhere(domain.Filters{
		DateFrom:     "2023-01-01",
		DateTo:       "2023-12-31",
		DocumentType: "markdown",
		Ticker:       "AAPL",
		FormType:     "10-K",
		Source:       "/docs/aapl.md",
		Metadata:     map[string]any{"sector": "tech", "region": "us"},
	})

	and, ok := where.(domain.And)
	require.True(t, ok)
	require.Len(t, and.Operands, 8)
	assert.Equal(t, domain.Cond{Field: "date", Op: domain.OpGte, Value: "2023-01-01"}, and.Operands[0])
	assert.Equal(t, domain.Cond{Field: "date", Op: domain.OpLte, Value: "2023-12-31T23:59:59Z"}, and.Operands[1])
	assert.Equal(t, domain.Cond{Field: "type", Op: domain.OpEq, Value: "markdown"}, and.Operands[2])
	assert.Equal(t, domain.Cond{Field: "form_type", Op: domain.OpEq, Value: "10-K"}, and.Operands[4])
	assert.Equal(t, domain.Cond{Field: "region", Op: domain.OpEq, Value: "us"}, and.Operands[6])
	assert.Equal(t, domain.Cond{Field: "sector", Op: domain.OpEq, Value: "tech"}, and.Operands[7])
}

func TestFilterBuilder_BuildWhere_DateRangeMatching(t *testing.T) {
	b := NewFilterBuilder()
	where := b.BuildWhere(domain.Filters{DateFrom: "2023-01-01", DateTo: "2023-06-30"})

	tests := []struct {
		date string
		want bool
	}{
		{"2022-12-31T23:59:59Z", false},
		{"2023-01-01T00:00:00Z", true},
		{"2023-06-30T18:00:00Z", true},
		{"2023-07-01T00:00:00Z", false},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			assert.Equal(t, tt.want, where.Match(domain.Metadata{"date": tt.date}))
		})
	}
}

func TestFilterBuilder_BuildWhere_KeepsTimestampUpperBound(t *testing.T) {
	b := NewFilterBuilder()
	where := b.BuildWhere(domain.Filters{DateTo: "2023-06-30T12:00:00Z"})
	assert.Equal(t, domain.Cond{Field: "date", Op: domain.OpLte, Value: "2023-06-30T12:00:00Z"}, where)
}

func TestFilterBuilder_BuildWhereDocument(t *testing.T) {
	b := NewFilterBuilder()

	tests := []struct {
		name  string
		op    string
		value string
		want  *domain.DocumentWhere
	}{
		{"contains", "contains", "revenue", &domain.DocumentWhere{Contains: "revenue"}},
		{"case insensitive op", "CONTAINS", "revenue", &domain.DocumentWhere{Contains: "revenue"}},
		{"not contains unsupported", "not_contains", "revenue", nil},
		{"unknown op", "regex", "rev.*", nil},
		{"empty value", "contains", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.BuildWhereDocument(tt.op, tt.value))
		})
	}
}
