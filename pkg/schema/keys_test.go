package schema

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseInstanceKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		key   string
		index int
		ok    bool
	}{
		{"animalName_0", 0, true},
		{"animalName_12", 12, true},
		{"animalName", 0, false},
		{"animalName_", 0, false},
		{"animalName_x", 0, false},
		{"animalName_0_1", 0, false},
		{"animalNameX_0", 0, false},
	}
	for _, tc := range cases {
		index, ok := ParseInstanceKey("animalName", tc.key)
		if ok != tc.ok || index != tc.index {
			t.Errorf("ParseInstanceKey(%q) = %d, %v; want %d, %v", tc.key, index, ok, tc.index, tc.ok)
		}
	}
	if got := InstanceKey("animalAge", 3); got != "animalAge_3" {
		t.Fatalf("InstanceKey = %q", got)
	}
}

func TestRepeatCount(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		in   any
		want int
	}{
		"nil":      {nil, 0},
		"int":      {3, 3},
		"float":    {2.9, 2},
		"string":   {"4", 4},
		"garbage":  {"four", 0},
		"negative": {-2, 0},
		"nan":      {math.NaN(), 0},
		"empty":    {"", 0},
		"capped":   {1e9, MaxRepeatInstances},
		"fraction": {0.5, 0},
	}
	for name, tc := range cases {
		if got := RepeatCount(tc.in); got != tc.want {
			t.Errorf("%s: RepeatCount(%v) = %d, want %d", name, tc.in, got, tc.want)
		}
	}
}

func TestRepeatArray(t *testing.T) {
	t.Parallel()

	if diff := cmp.Diff([]int{0, 1, 2}, RepeatArray(3)); diff != "" {
		t.Fatalf("RepeatArray mismatch (-want +got):\n%s", diff)
	}
	if got := RepeatArray(-1); len(got) != 0 {
		t.Fatalf("expected empty array, got %v", got)
	}
}

func TestRewriteKeysDoesNotMutate(t *testing.T) {
	t.Parallel()

	orig := All(Equals("a", 1), Not(In("b", "x")))
	rewritten := RewriteKeys(orig, func(k string) string { return InstanceKey(k, 2) })

	if diff := cmp.Diff([]string{"a", "b"}, Keys(orig)); diff != "" {
		t.Fatalf("original keys changed (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a_2", "b_2"}, Keys(rewritten)); diff != "" {
		t.Fatalf("rewritten keys mismatch (-want +got):\n%s", diff)
	}
}

func TestInitialValue(t *testing.T) {
	t.Parallel()

	if got := InitialValue(Question{Key: "opts", Type: TypeCheckboxGroup}); got == nil {
		t.Fatalf("checkbox group should start with an empty list")
	}
	if diff := cmp.Diff([]any{}, InitialValue(Question{Type: TypeCheckboxGroup})); diff != "" {
		t.Fatalf("unexpected initial list (-want +got):\n%s", diff)
	}
	if got := InitialValue(Question{Key: "name", Type: TypeText}); got != nil {
		t.Fatalf("expected nil initial value, got %v", got)
	}
}
