package domain

import "strings"

// Operator is a comparison used in a metadata condition.
type Operator string

// Supported operators. Every store backend translates these natively.
const (
	OpEq  Operator = "$eq"
	OpGte Operator = "$gte"
	OpLte Operator = "$lte"
)

// Where is a store-neutral metadata predicate.
// A nil Where matches every record.
type Where interface {
	// Match reports whether metadata satisfies the predicate.
	Match(md Metadata) bool

	// Map renders the predicate in the operator-map form used for display,
	// e.g. {"ticker": {"$eq": "AAPL"}}.
	Map() map[string]any
}

// Cond compares one metadata field against a value.
type Cond struct {
	Field string
	Op    Operator
	Value any
}

// Match implements Where. A missing field never matches.
func (c Cond) Match(md Metadata) bool {
	v, ok := md[c.Field]
	if !ok {
		return false
	}
	cmp, ok := compareScalars(v, c.Value)
	if !ok {
		return false
	}
	switch c.Op {
	case OpEq:
		return cmp == 0
	case OpGte:
		return cmp >= 0
	case OpLte:
		return cmp <= 0
	default:
		return false
	}
}

// Map implements Where.
func (c Cond) Map() map[string]any {
	return map[string]any{c.Field: map[string]any{string(c.Op): c.Value}}
}

// And matches when every operand matches.
type And struct {
	Operands []Where
}

// Match implements Where.
func (a And) Match(md Metadata) bool {
	for _, op := range a.Operands {
		if op != nil && !op.Match(md) {
			return false
		}
	}
	return true
}

// Map implements Where.
func (a And) Map() map[string]any {
	parts := make([]any, 0, len(a.Operands))
	for _, op := range a.Operands {
		if op != nil {
			parts = append(parts, op.Map())
		}
	}
	return map[string]any{"$and": parts}
}

// DocumentWhere is a predicate on chunk text rather than metadata.
// Only substring containment is supported.
type DocumentWhere struct {
	Contains string
}

// Match reports whether content satisfies the predicate.
// A nil predicate matches everything.
func (d *DocumentWhere) Match(content string) bool {
	if d == nil {
		return true
	}
	return strings.Contains(content, d.Contains)
}

// Map renders the predicate as {"$contains": value}.
func (d *DocumentWhere) Map() map[string]any {
	if d == nil {
		return nil
	}
	return map[string]any{"$contains": d.Contains}
}

// compareScalars orders two metadata values. Numbers compare numerically,
// strings lexically (ISO dates therefore compare chronologically) and
// booleans only for equality. ok is false for incomparable types.
func compareScalars(a, b any) (int, bool) {
	if fa, aok := toFloat(a); aok {
		fb, bok := toFloat(b)
		if !bok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		default:
			return 0, true
		}
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok || av != bv {
			return 1, ok
		}
		return 0, true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}
