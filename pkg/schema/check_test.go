package schema

import (
	"errors"
	"strings"
	"testing"
)

func TestCheckAcceptsWellFormedForm(t *testing.T) {
	t.Parallel()

	pages := []Page{{
		Title: "Details",
		Sections: []Section{
			{
				Title: "Counts",
				Questions: []Question{
					{Key: "count", Type: TypeNumber, Validators: []ValidationRule{Required(), Min(0)}},
					{Key: "total", Type: TypeNumber, Math: &Math{Operation: "add", DependsOn: []string{"a", "b"}},
						Validators: []ValidationRule{MathRule(MathRuleGreaterThan, 0, "")}},
				},
			},
			{
				Title:         "Per item",
				RepeatFor:     &RepeatFor{Key: "count"},
				ConditionalOn: All(GreaterThan("count", 0), Not(Equals("flag", "no"))),
				Questions:     []Question{{Key: "name", Validators: []ValidationRule{Required(), Pattern(`^[a-z]+$`)}}},
			},
		},
	}}

	if err := Check(pages); err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
}

func TestCheckReportsEveryProblem(t *testing.T) {
	t.Parallel()

	pages := []Page{{
		Sections: []Section{{
			RepeatFor: &RepeatFor{},
			Questions: []Question{
				{Key: "a", ConditionalOn: &Leaf{Key: "b", Operator: "roughly"}},
				{Key: "b", ConditionalOn: &Group{Operator: OpAll}},
				{Key: "c", Math: &Math{Operation: "modulo"}},
				{Key: "d", Validators: []ValidationRule{{Kind: "luhn"}}},
				{Key: "e", ConditionalOn: &Leaf{Operator: OpEquals, Value: 1}},
			},
		}},
	}}

	err := Check(pages)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, ErrInvalidSchema) {
		t.Fatalf("expected ErrInvalidSchema, got %v", err)
	}
	if !errors.Is(err, ErrUnknownOperator) {
		t.Fatalf("expected ErrUnknownOperator, got %v", err)
	}

	msg := err.Error()
	for _, want := range []string{
		"repeatFor: key is required",
		`unknown conditional operator "roughly"`,
		"all condition requires conditions",
		`unknown math operation "modulo"`,
		"dependsOn is required",
		`unknown rule kind "luhn"`,
		"leaf condition requires a key",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in error:\n%s", want, msg)
		}
	}
}

func TestCheckRuleParams(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		rule ValidationRule
		ok   bool
	}{
		{"min numeric", Min(3), true},
		{"min missing value", ValidationRule{Kind: RuleMin}, false},
		{"max length negative", ValidationRule{Kind: RuleMaxLength, Params: map[string]string{"value": "-1"}}, false},
		{"bad pattern", Pattern("(["), false},
		{"math unknown operator", ValidationRule{Kind: RuleMath, Params: map[string]string{"operator": "between", "value": "1"}}, false},
		{"math ok", MathRule(MathRuleLessThan, 10, "too big"), true},
	}

	for _, tc := range cases {
		err := CheckRule(tc.rule)
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestCheckRejectsLeafOperatorOnGroup(t *testing.T) {
	t.Parallel()

	err := CheckCondition(&Group{Operator: OpEquals, Conditions: []Condition{Equals("a", 1)}})
	if err == nil || !strings.Contains(err.Error(), "requires a key") {
		t.Fatalf("expected key error, got %v", err)
	}
}
