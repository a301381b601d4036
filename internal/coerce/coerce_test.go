package coerce

import (
	"math"
	"testing"
)

func TestNumber(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{3, 3, true},
		{int64(-2), -2, true},
		{2.5, 2.5, true},
		{" 4 ", 4, true},
		{"1e2", 100, true},
		{true, 1, true},
		{"", 0, false},
		{"abc", 0, false},
		{nil, 0, false},
		{math.NaN(), 0, false},
		{[]any{1}, 0, false},
	}
	for _, tc := range cases {
		got, ok := Number(tc.in)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("Number(%#v) = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestEqual(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a, b any
		want bool
	}{
		{3, 3.0, true},
		{int64(5), 5, true},
		{"3", 3, false},
		{"Yes", "Yes", true},
		{nil, nil, true},
		{nil, "", false},
		{[]any{"a"}, []any{"a"}, true},
		{true, 1, false},
	}
	for _, tc := range cases {
		if got := Equal(tc.a, tc.b); got != tc.want {
			t.Errorf("Equal(%#v, %#v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestFilledEmptyTruthy(t *testing.T) {
	t.Parallel()

	if Filled(nil) || Filled("") {
		t.Fatalf("nil and empty string are unfilled")
	}
	if !Filled(0) || !Filled(false) || !Filled([]any{}) {
		t.Fatalf("zero, false and empty lists count as filled")
	}
	if !Empty([]any{}) || Empty([]string{"x"}) {
		t.Fatalf("Empty should inspect list length")
	}
	if Truthy(0) || Truthy("") || Truthy([]any{}) || Truthy(false) || Truthy(nil) {
		t.Fatalf("falsy values reported truthy")
	}
	if !Truthy("no") || !Truthy(-1) || !Truthy([]any{0}) {
		t.Fatalf("truthy values reported falsy")
	}
}

func TestList(t *testing.T) {
	t.Parallel()

	if _, ok := List("abc"); ok {
		t.Fatalf("strings are not lists")
	}
	if _, ok := List([]byte("abc")); ok {
		t.Fatalf("byte slices are not lists")
	}
	got, ok := List([]int{1, 2})
	if !ok || len(got) != 2 || !Contains(got, 2.0) {
		t.Fatalf("unexpected list conversion %v %v", got, ok)
	}
}
