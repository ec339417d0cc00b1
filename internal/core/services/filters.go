package services

import (
	"sort"
	"strings"

	"github.com/custodia-labs/finrag/internal/core/domain"
)

// endOfDay is appended to a bare YYYY-MM-DD upper bound so that chunks
// dated later that day still match.
const endOfDay = "T23:59:59Z"

// FilterBuilder converts structured filters into store predicates.
type FilterBuilder struct{}

// NewFilterBuilder creates a filter builder.
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{}
}

// BuildWhere returns a metadata predicate for f, or nil when f sets nothing.
// A single condition is returned bare; several are combined with And.
func (b *FilterBuilder) BuildWhere(f domain.Filters) domain.Where {
	var conds []domain.Where

	if f.DateFrom != "" {
		conds = append(conds, domain.Cond{Field: domain.MetaDate, Op: domain.OpGte, Value: f.DateFrom})
	}
	if f.DateTo != "" {
		conds = append(conds, domain.Cond{Field: domain.MetaDate, Op: domain.OpLte, Value: inclusiveUpper(f.DateTo)})
	}
	if f.DocumentType != "" {
		conds = append(conds, domain.Cond{Field: domain.MetaType, Op: domain.OpEq, Value: f.DocumentType})
	}
	if f.Ticker != "" {
		conds = append(conds, domain.Cond{Field: domain.MetaTicker, Op: domain.OpEq, Value: f.Ticker})
	}
	if f.FormType != "" {
		conds = append(conds, domain.Cond{Field: domain.MetaFormType, Op: domain.OpEq, Value: f.FormType})
	}
	if f.Source != "" {
		conds = append(conds, domain.Cond{Field: domain.MetaSource, Op: domain.OpEq, Value: f.Source})
	}

	keys := make([]string, 0, len(f.Metadata))
	for k := range f.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		conds = append(conds, domain.Cond{Field: k, Op: domain.OpEq, Value: f.Metadata[k]})
	}

	switch len(conds) {
	case 0:
		return nil
	case 1:
		return conds[0]
	default:
		return domain.And{Operands: conds}
	}
}

// BuildWhereDocument returns a content predicate. Only "contains" is
// supported; any other operator or an empty value yields nil.
func (b *FilterBuilder) BuildWhereDocument(op, value string) *domain.DocumentWhere {
	if value == "" {
		return nil
	}
	if strings.ToLower(strings.TrimSpace(op)) != "contains" {
		return nil
	}
	return &domain.DocumentWhere{Contains: value}
}

// inclusiveUpper extends a bare date to the last second of that day.
func inclusiveUpper(date string) string {
	if len(date) == len("2006-01-02") && !strings.Contains(date, "T") {
		return date + endOfDay
	}
	return date
}
