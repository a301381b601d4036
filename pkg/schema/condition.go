package schema

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-formengine/internal/coerce"
)

// ConditionalOperator names a comparison or combinator.
type ConditionalOperator string

const (
	OpEquals             ConditionalOperator = "equals"
	OpNotEquals          ConditionalOperator = "notEquals"
	OpGreaterThan        ConditionalOperator = "greaterThan"
	OpLessThan           ConditionalOperator = "lessThan"
	OpGreaterThanOrEqual ConditionalOperator = "greaterThanOrEqual"
	OpLessThanOrEqual    ConditionalOperator = "lessThanOrEqual"
	OpIn                 ConditionalOperator = "in"
	OpIsTruthy           ConditionalOperator = "!!"
	OpAny                ConditionalOperator = "any"
	OpAll                ConditionalOperator = "all"
	OpNot                ConditionalOperator = "not"
)

// IsLeaf reports whether op compares a single field.
func (op ConditionalOperator) IsLeaf() bool {
	switch op {
	case OpEquals, OpNotEquals, OpGreaterThan, OpLessThan,
		OpGreaterThanOrEqual, OpLessThanOrEqual, OpIn, OpIsTruthy:
		return true
	default:
		return false
	}
}

// IsGroup reports whether op combines nested conditions.
func (op ConditionalOperator) IsGroup() bool {
	switch op {
	case OpAll, OpAny, OpNot:
		return true
	default:
		return false
	}
}

// Deferred reports whether a leaf using op evaluates to false while its field
// is unanswered instead of comparing.
func (op ConditionalOperator) Deferred() bool {
	return op.IsLeaf() && op != OpIn && op != OpIsTruthy
}

// Condition is either a *Leaf or a *Group.
type Condition interface {
	isCondition()
	String() string
}

// Leaf compares the value of field Key against Value. An empty Operator means
// OpEquals.
type Leaf struct {
	Key      string
	Operator ConditionalOperator
	Value    any
}

func (*Leaf) isCondition() {}

// Op returns the effective operator.
func (l *Leaf) Op() ConditionalOperator {
	if l.Operator == "" {
		return OpEquals
	}
	return l.Operator
}

func (l *Leaf) String() string {
	if l.Op() == OpIsTruthy {
		return "!!" + l.Key
	}
	return fmt.Sprintf("%s %s %v", l.Key, l.Op(), l.Value)
}

// Group combines nested conditions. OpNot only considers Conditions[0].
type Group struct {
	Operator   ConditionalOperator
	Conditions []Condition
}

func (*Group) isCondition() {}

func (g *Group) String() string {
	parts := make([]string, 0, len(g.Conditions))
	for _, c := range g.Conditions {
		if c == nil {
			parts = append(parts, "<nil>")
			continue
		}
		parts = append(parts, c.String())
	}
	return fmt.Sprintf("%s(%s)", g.Operator, strings.Join(parts, ", "))
}

// Convenience constructors used by fixtures and tests.

func Equals(key string, value any) *Leaf {
	return &Leaf{Key: key, Operator: OpEquals, Value: value}
}

func NotEquals(key string, value any) *Leaf {
	return &Leaf{Key: key, Operator: OpNotEquals, Value: value}
}

func GreaterThan(key string, value any) *Leaf {
	return &Leaf{Key: key, Operator: OpGreaterThan, Value: value}
}

func GreaterThanOrEqual(key string, value any) *Leaf {
	return &Leaf{Key: key, Operator: OpGreaterThanOrEqual, Value: value}
}

func LessThan(key string, value any) *Leaf {
	return &Leaf{Key: key, Operator: OpLessThan, Value: value}
}

func LessThanOrEqual(key string, value any) *Leaf {
	return &Leaf{Key: key, Operator: OpLessThanOrEqual, Value: value}
}

func In(key string, values ...any) *Leaf {
	return &Leaf{Key: key, Operator: OpIn, Value: values}
}

func IsTruthy(key string) *Leaf {
	return &Leaf{Key: key, Operator: OpIsTruthy}
}

func All(conditions ...Condition) *Group {
	return &Group{Operator: OpAll, Conditions: conditions}
}

func Any(conditions ...Condition) *Group {
	return &Group{Operator: OpAny, Conditions: conditions}
}

func Not(condition Condition) *Group {
	return &Group{Operator: OpNot, Conditions: []Condition{condition}}
}

// Keys returns the field keys referenced by cond in first-seen order.
func Keys(cond Condition) []string {
	seen := map[string]struct{}{}
	var keys []string
	var visit func(Condition)
	visit = func(c Condition) {
		switch node := c.(type) {
		case *Leaf:
			if _, ok := seen[node.Key]; ok {
				return
			}
			seen[node.Key] = struct{}{}
			keys = append(keys, node.Key)
		case *Group:
			for _, child := range node.Conditions {
				visit(child)
			}
		}
	}
	visit(cond)
	return keys
}

// RewriteKeys returns a copy of cond with every leaf key passed through fn.
// The input is never mutated.
func RewriteKeys(cond Condition, fn func(string) string) Condition {
	switch node := cond.(type) {
	case *Leaf:
		clone := *node
		clone.Key = fn(node.Key)
		return &clone
	case *Group:
		clone := &Group{Operator: node.Operator, Conditions: make([]Condition, len(node.Conditions))}
		for i, child := range node.Conditions {
			clone.Conditions[i] = RewriteKeys(child, fn)
		}
		return clone
	default:
		return cond
	}
}

func equalOption(a, b any) bool {
	if coerce.Equal(a, b) {
		return true
	}
	// select values arriving from a terminal or a query string are text
	if _, ok := b.(string); ok && coerce.IsNumeric(a) {
		return coerce.String(a) == b
	}
	return false
}
