// Package coerce converts loosely typed answer values (strings from a
// terminal, float64 from JSON, ints from Go callers) into the shapes the
// engine compares and folds.
package coerce

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Number casts value to float64. The second result is false when the value
// has no numeric reading (nil, non-numeric strings, lists, maps). Callers that
// need NaN semantics treat a false result as NaN.
func Number(value any) (float64, bool) {
	if value == nil {
		return 0, false
	}
	switch v := value.(type) {
	case float64:
		return v, !math.IsNaN(v)
	case float32:
		return float64(v), !math.IsNaN(float64(v))
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	case fmt.Stringer:
		return Number(v.String())
	default:
		return 0, false
	}
}

// NumberOrZero mirrors `+value || 0`: anything without a numeric reading
// folds to zero.
func NumberOrZero(value any) float64 {
	f, ok := Number(value)
	if !ok {
		return 0
	}
	return f
}

// IsNumeric reports whether value is one of Go's numeric kinds (strings are
// not numeric even when they parse).
func IsNumeric(value any) bool {
	switch value.(type) {
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}

// Filled reports whether a value counts as answered: nil and the empty string
// are unanswered, everything else (including an empty list) is answered.
func Filled(value any) bool {
	if value == nil {
		return false
	}
	if s, ok := value.(string); ok {
		return s != ""
	}
	return true
}

// Empty reports whether value is nil, an empty string, or an empty list. It
// is stricter than Filled and is used by required checks.
func Empty(value any) bool {
	if !Filled(value) {
		return true
	}
	if list, ok := List(value); ok {
		return len(list) == 0
	}
	return false
}

// Truthy follows the usual loose truthiness rules: nil, false, 0, NaN, "" and
// empty collections are false.
func Truthy(value any) bool {
	if value == nil {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v != ""
	case map[string]any:
		return len(v) > 0
	}
	if IsNumeric(value) {
		f, ok := Number(value)
		return ok && f != 0
	}
	if list, ok := List(value); ok {
		return len(list) > 0
	}
	return true
}

// Equal compares two answers. Numbers compare by value across widths; every
// other combination is a strict comparison, so "3" does not equal 3.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if IsNumeric(a) && IsNumeric(b) {
		x, _ := Number(a)
		y, _ := Number(b)
		return x == y
	}
	if IsNumeric(a) != IsNumeric(b) {
		return false
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta.Comparable() && tb.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// List returns value as []any when it is any kind of slice or array.
func List(value any) ([]any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		// []byte is text, not a list
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// Contains reports whether list holds an element Equal to needle.
func Contains(list []any, needle any) bool {
	for _, item := range list {
		if Equal(item, needle) {
			return true
		}
	}
	return false
}

// String renders value for display and for string-typed rules.
func String(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprint(value)
	}
}
