// Package visibility decides whether questions and sections are relevant given
// the current answers, and applies the consequences to the field store:
// hidden fields are disabled and cleared, visible ones are re-enabled.
package visibility

import (
	"github.com/goliatone/go-formengine/pkg/schema"
)

// Values resolves field keys to their current value. *store.Store satisfies
// it.
type Values interface {
	Lookup(key string) (any, bool)
}

// Map adapts a plain map into Values.
type Map map[string]any

// Lookup implements Values.
func (m Map) Lookup(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

// Evaluator determines whether a condition holds for the given values.
type Evaluator interface {
	Eval(cond schema.Condition, values Values) bool
}

// EvaluatorFunc adapts a function into an Evaluator.
type EvaluatorFunc func(cond schema.Condition, values Values) bool

// Eval delegates to the underlying function.
func (fn EvaluatorFunc) Eval(cond schema.Condition, values Values) bool {
	return fn(cond, values)
}

// Default evaluates conditions with Evaluate.
var Default Evaluator = EvaluatorFunc(Evaluate)
