// Package validation runs schema.ValidationRule sets against field values.
// Rules other than required ignore empty values, so an optional field only
// fails when something was entered.
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/goliatone/go-formengine/internal/coerce"
	"github.com/goliatone/go-formengine/pkg/schema"
)

// Error is a single failed rule.
type Error struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e Error) Error() string {
	return e.Message
}

// Run evaluates every rule against value and returns the failures in rule
// order. A nil result means the value is valid.
func Run(rules []schema.ValidationRule, value any) []Error {
	var errs []Error
	for _, rule := range rules {
		if msg, ok := check(rule, value); !ok {
			errs = append(errs, Error{Kind: rule.Kind, Message: msg})
		}
	}
	return errs
}

// Valid reports whether value satisfies every rule.
func Valid(rules []schema.ValidationRule, value any) bool {
	for _, rule := range rules {
		if _, ok := check(rule, value); !ok {
			return false
		}
	}
	return true
}

// Messages flattens errs into their messages.
func Messages(errs []Error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Message
	}
	return out
}

func check(rule schema.ValidationRule, value any) (string, bool) {
	switch rule.Kind {
	case schema.RuleRequired:
		if coerce.Empty(value) {
			return "This field is required", false
		}
	case schema.RuleMin:
		if coerce.Empty(value) {
			return "", true
		}
		limit, _ := strconv.ParseFloat(rule.Param("value"), 64)
		if f, ok := coerce.Number(value); ok && f < limit {
			return fmt.Sprintf("Must be at least %s", rule.Param("value")), false
		}
	case schema.RuleMax:
		if coerce.Empty(value) {
			return "", true
		}
		limit, _ := strconv.ParseFloat(rule.Param("value"), 64)
		if f, ok := coerce.Number(value); ok && f > limit {
			return fmt.Sprintf("Must be at most %s", rule.Param("value")), false
		}
	case schema.RuleMinLength:
		if coerce.Empty(value) {
			return "", true
		}
		limit, _ := strconv.Atoi(rule.Param("value"))
		if length(value) < limit {
			return fmt.Sprintf("Must be at least %d characters", limit), false
		}
	case schema.RuleMaxLength:
		if coerce.Empty(value) {
			return "", true
		}
		limit, _ := strconv.Atoi(rule.Param("value"))
		if length(value) > limit {
			return fmt.Sprintf("Must be at most %d characters", limit), false
		}
	case schema.RulePattern:
		if coerce.Empty(value) {
			return "", true
		}
		re, err := compile(rule.Param("pattern"))
		if err != nil {
			return "Invalid pattern", false
		}
		if !re.MatchString(coerce.String(value)) {
			return "Invalid format", false
		}
	case schema.RuleMath:
		return checkMath(rule, value)
	}
	return "", true
}

func checkMath(rule schema.ValidationRule, value any) (string, bool) {
	actual := 0.0
	if coerce.Filled(value) {
		f, ok := coerce.Number(value)
		if !ok {
			return messageOr(rule, "Invalid number input"), false
		}
		actual = f
	}
	expected, err := strconv.ParseFloat(rule.Param("value"), 64)
	if err != nil {
		return "Invalid operator", false
	}
	want := rule.Param("value")
	switch rule.Param("operator") {
	case schema.MathRuleEquals:
		if actual != expected {
			return messageOr(rule, "Expected "+want), false
		}
	case schema.MathRuleGreaterThan:
		if !(actual > expected) {
			return messageOr(rule, "Must be greater than "+want), false
		}
	case schema.MathRuleLessThan:
		if !(actual < expected) {
			return messageOr(rule, "Must be less than "+want), false
		}
	default:
		return "Invalid operator", false
	}
	return "", true
}

func messageOr(rule schema.ValidationRule, fallback string) string {
	if msg := rule.Param("message"); msg != "" {
		return msg
	}
	return fallback
}

func length(value any) int {
	if list, ok := coerce.List(value); ok {
		return len(list)
	}
	return utf8.RuneCountInString(coerce.String(value))
}

var patterns sync.Map

// compile anchors the expression to the whole value unless it already
// carries anchors, and caches the result.
func compile(expr string) (*regexp.Regexp, error) {
	if cached, ok := patterns.Load(expr); ok {
		return cached.(*regexp.Regexp), nil
	}
	core := strings.TrimSuffix(strings.TrimPrefix(expr, "^"), "$")
	anchored := "^(?:" + core + ")$"
	re, err := regexp.Compile(anchored)
	if err != nil {
		return nil, err
	}
	patterns.Store(expr, re)
	return re, nil
}
