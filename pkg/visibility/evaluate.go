package visibility

import (
	"github.com/goliatone/go-formengine/internal/coerce"
	"github.com/goliatone/go-formengine/pkg/schema"
)

// Evaluate reports whether cond holds. A nil condition always holds.
//
// Evaluation is deferred: comparisons on an unanswered field (nil or "") are
// false, in/!! on an unanswered field are false, and all/any/not are false
// until every leaf beneath them is answered. Numeric comparisons on values
// without a numeric reading are false.
func Evaluate(cond schema.Condition, values Values) bool {
	switch node := cond.(type) {
	case nil:
		return true
	case *schema.Leaf:
		if node == nil {
			return true
		}
		return evalLeaf(node, values)
	case *schema.Group:
		if node == nil {
			return true
		}
		return evalGroup(node, values)
	default:
		return false
	}
}

// Filled reports whether every leaf under cond refers to an answered field.
func Filled(cond schema.Condition, values Values) bool {
	switch node := cond.(type) {
	case nil:
		return true
	case *schema.Leaf:
		if node == nil {
			return true
		}
		return coerce.Filled(lookup(values, node.Key))
	case *schema.Group:
		if node == nil {
			return true
		}
		for _, child := range node.Conditions {
			if !Filled(child, values) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func evalGroup(g *schema.Group, values Values) bool {
	switch g.Operator {
	case schema.OpAll:
		if !Filled(g, values) {
			return false
		}
		for _, child := range g.Conditions {
			if !Evaluate(child, values) {
				return false
			}
		}
		return true
	case schema.OpAny:
		if !Filled(g, values) {
			return false
		}
		for _, child := range g.Conditions {
			if Evaluate(child, values) {
				return true
			}
		}
		return false
	case schema.OpNot:
		if len(g.Conditions) == 0 {
			return false
		}
		inner := g.Conditions[0]
		if !Filled(inner, values) {
			return false
		}
		return !Evaluate(inner, values)
	default:
		return false
	}
}

func evalLeaf(l *schema.Leaf, values Values) bool {
	value := lookup(values, l.Key)
	op := l.Op()
	if !coerce.Filled(value) && (op.Deferred() || op == schema.OpIn || op == schema.OpIsTruthy) {
		return false
	}

	switch op {
	case schema.OpEquals:
		return coerce.Equal(value, l.Value)
	case schema.OpNotEquals:
		return !coerce.Equal(value, l.Value)
	case schema.OpGreaterThan:
		return compareNumeric(value, l.Value, func(a, b float64) bool { return a > b })
	case schema.OpGreaterThanOrEqual:
		return compareNumeric(value, l.Value, func(a, b float64) bool { return a >= b })
	case schema.OpLessThan:
		return compareNumeric(value, l.Value, func(a, b float64) bool { return a < b })
	case schema.OpLessThanOrEqual:
		return compareNumeric(value, l.Value, func(a, b float64) bool { return a <= b })
	case schema.OpIn:
		return in(value, l.Value)
	case schema.OpIsTruthy:
		return coerce.Truthy(value)
	default:
		return false
	}
}

func compareNumeric(value, expected any, cmp func(a, b float64) bool) bool {
	a, ok := coerce.Number(value)
	if !ok {
		return false
	}
	b, ok := coerce.Number(expected)
	if !ok {
		return false
	}
	return cmp(a, b)
}

// in reports membership of value in the expected list. A list value matches
// when any of its items is a member.
func in(value, expected any) bool {
	list, ok := coerce.List(expected)
	if !ok {
		return false
	}
	if items, isList := coerce.List(value); isList {
		for _, item := range items {
			if coerce.Contains(list, item) {
				return true
			}
		}
		return false
	}
	return coerce.Contains(list, value)
}

func lookup(values Values, key string) any {
	if values == nil {
		return nil
	}
	v, ok := values.Lookup(key)
	if !ok {
		return nil
	}
	return v
}
