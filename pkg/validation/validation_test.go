package validation

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formengine/pkg/schema"
)

func TestRequired(t *testing.T) {
	t.Parallel()

	rules := []schema.ValidationRule{schema.Required()}
	for _, empty := range []any{nil, "", []any{}} {
		if Valid(rules, empty) {
			t.Errorf("expected %#v to fail required", empty)
		}
	}
	for _, filled := range []any{"x", 0, false, []any{"a"}} {
		if !Valid(rules, filled) {
			t.Errorf("expected %#v to pass required", filled)
		}
	}
}

func TestBoundsIgnoreEmptyAndNonNumeric(t *testing.T) {
	t.Parallel()

	rules := []schema.ValidationRule{schema.Min(0), schema.Max(10)}
	cases := map[string]struct {
		value any
		ok    bool
	}{
		"empty":       {"", true},
		"nil":         {nil, true},
		"in range":    {5, true},
		"string num":  {"7", true},
		"below":       {-1, false},
		"above":       {11.5, false},
		"not numeric": {"many", true},
	}
	for name, tc := range cases {
		if got := Valid(rules, tc.value); got != tc.ok {
			t.Errorf("%s: Valid(%v) = %v, want %v", name, tc.value, got, tc.ok)
		}
	}
}

func TestLengthAndPattern(t *testing.T) {
	t.Parallel()

	rules := []schema.ValidationRule{schema.MinLength(2), schema.MaxLength(5), schema.Pattern(`[0-9]+`)}

	got := Messages(Run(rules, "a"))
	want := []string{"Must be at least 2 characters", "Invalid format"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}
	if !Valid(rules, "1234") {
		t.Fatalf("expected 1234 to be valid")
	}
	if Valid(rules, "12a4") {
		t.Fatalf("pattern should match the whole value")
	}
	if Valid([]schema.ValidationRule{schema.MaxLength(1)}, []any{"a", "b"}) {
		t.Fatalf("maxLength should count list items")
	}
}

func TestMathRule(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		rule  schema.ValidationRule
		value any
		want  []string
	}{
		{"greater ok", schema.MathRule(schema.MathRuleGreaterThan, 0, ""), 3.0, nil},
		{"greater fails", schema.MathRule(schema.MathRuleGreaterThan, 0, ""), 0, []string{"Must be greater than 0"}},
		{"empty counts as zero", schema.MathRule(schema.MathRuleEquals, 0, ""), nil, nil},
		{"less custom message", schema.MathRule(schema.MathRuleLessThan, 100, "Too expensive"), 250, []string{"Too expensive"}},
		{"equals", schema.MathRule(schema.MathRuleEquals, 7, ""), "7", nil},
		{"not a number", schema.MathRule(schema.MathRuleGreaterThan, 0, ""), "abc", []string{"Invalid number input"}},
	}
	for _, tc := range cases {
		got := Messages(Run([]schema.ValidationRule{tc.rule}, tc.value))
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("%s: messages mismatch (-want +got):\n%s", tc.name, diff)
		}
	}
}
