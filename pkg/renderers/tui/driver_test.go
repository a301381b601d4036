package tui

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseNumber(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{raw: "42", want: 42, ok: true},
		{raw: " 3.5 ", want: 3.5, ok: true},
		{raw: "1,250", want: 1250, ok: true},
		{raw: "10_000", want: 10000, ok: true},
		{raw: "-2", want: -2, ok: true},
		{raw: "", ok: false},
		{raw: "ten", ok: false},
	}
	for _, tc := range cases {
		got, ok := ParseNumber(tc.raw)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParseNumber(%q) = %v, %v; want %v, %v", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestNumberAnswerAllowsBlank(t *testing.T) {
	t.Parallel()

	if err := numberAnswer("  "); err != nil {
		t.Fatalf("blank answer should pass, got %v", err)
	}
	if err := numberAnswer("12"); err != nil {
		t.Fatalf("numeric answer should pass, got %v", err)
	}
	err := numberAnswer(" abc ")
	if err == nil || !strings.Contains(err.Error(), `"abc" is not a number`) {
		t.Fatalf("expected not-a-number error, got %v", err)
	}
}

func TestPageSize(t *testing.T) {
	t.Parallel()

	options := func(n int) []string { return make([]string, n) }
	cases := []struct {
		name string
		cfg  SelectConfig
		want int
	}{
		{name: "explicit", cfg: SelectConfig{Options: options(40), PageSize: 5}, want: 5},
		{name: "short list keeps default", cfg: SelectConfig{Options: options(3)}, want: minPageSize},
		{name: "mid list shown whole", cfg: SelectConfig{Options: options(11)}, want: 11},
		{name: "long list capped", cfg: SelectConfig{Options: options(200)}, want: maxPageSize},
	}
	for _, tc := range cases {
		if got := pageSize(tc.cfg); got != tc.want {
			t.Fatalf("%s: pageSize = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestValidIndicesDropsOutOfRangeAndRepeats(t *testing.T) {
	t.Parallel()

	got := validIndices([]int{2, -1, 0, 2, 5}, 3)
	if diff := cmp.Diff([]int{2, 0}, got); diff != "" {
		t.Fatalf("indices mismatch (-want +got):\n%s", diff)
	}
}

func TestWithPlaceholder(t *testing.T) {
	t.Parallel()

	if got := withPlaceholder("", ""); got != "" {
		t.Fatalf("got %q", got)
	}
	if got := withPlaceholder("", "jane@doe.co"); got != "e.g. jane@doe.co" {
		t.Fatalf("got %q", got)
	}
	if got := withPlaceholder("Work address", "jane@doe.co"); got != "Work address (e.g. jane@doe.co)" {
		t.Fatalf("got %q", got)
	}
}
