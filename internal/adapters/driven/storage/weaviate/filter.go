package weaviate

import (
	"fmt"

	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"

	"github.com/custodia-labs/finrag/internal/core/domain"
)

var operators = map[domain.Operator]filters.WhereOperator{
	domain.OpEq:  filters.Equal,
	domain.OpGte: filters.GreaterThanEqual,
	domain.OpLte: filters.LessThanEqual,
}

// Filter translates metadata and text predicates into one Weaviate where
// filter. It returns nil when both are nil.
func Filter(where domain.Where, whereDoc *domain.DocumentWhere) (*filters.WhereBuilder, error) {
	var operands []*filters.WhereBuilder
	if where != nil {
		w, err := translate(where)
		if err != nil {
			return nil, err
		}
		if w != nil {
			operands = append(operands, w)
		}
	}
	if whereDoc != nil {
		operands = append(operands, filters.Where().
			WithPath([]string{propContent}).
			WithOperator(filters.Like).
			WithValueText("*"+whereDoc.Contains+"*"))
	}

	switch len(operands) {
	case 0:
		return nil, nil
	case 1:
		return operands[0], nil
	default:
		return filters.Where().WithOperator(filters.And).WithOperands(operands), nil
	}
}

func translate(w domain.Where) (*filters.WhereBuilder, error) {
	switch v := w.(type) {
	case domain.Cond:
		op, ok := operators[v.Op]
		if !ok {
			return nil, fmt.Errorf("%w: unsupported operator %q", domain.ErrStore, v.Op)
		}
		if !propertyName.MatchString(v.Field) {
			return nil, fmt.Errorf("%w: metadata field %q cannot be filtered in weaviate", domain.ErrStore, v.Field)
		}
		builder := filters.Where().WithPath([]string{v.Field}).WithOperator(op)
		return withValue(builder, v.Value)

	case domain.And:
		var operands []*filters.WhereBuilder
		for _, operand := range v.Operands {
			if operand == nil {
				continue
			}
			w, err := translate(operand)
			if err != nil {
				return nil, err
			}
			operands = append(operands, w)
		}
		switch len(operands) {
		case 0:
			return nil, nil
		case 1:
			return operands[0], nil
		default:
			return filters.Where().WithOperator(filters.And).WithOperands(operands), nil
		}

	default:
		return nil, fmt.Errorf("%w: unsupported predicate %T", domain.ErrStore, w)
	}
}

func withValue(b *filters.WhereBuilder, value any) (*filters.WhereBuilder, error) {
	switch v := value.(type) {
	case string:
		return b.WithValueText(v), nil
	case bool:
		return b.WithValueBoolean(v), nil
	case int:
		return b.WithValueInt(int64(v)), nil
	case int64:
		return b.WithValueInt(v), nil
	case float64:
		return b.WithValueNumber(v), nil
	default:
		return nil, fmt.Errorf("%w: unsupported filter value %T", domain.ErrStore, value)
	}
}

// idFilter matches any of the given record ids.
func idFilter(ids []string) *filters.WhereBuilder {
	if len(ids) == 0 {
		return nil
	}
	operands := make([]*filters.WhereBuilder, len(ids))
	for i, id := range ids {
		operands[i] = filters.Where().
			WithPath([]string{propRecordID}).
			WithOperator(filters.Equal).
			WithValueText(id)
	}
	if len(operands) == 1 {
		return operands[0]
	}
	return filters.Where().WithOperator(filters.Or).WithOperands(operands)
}
