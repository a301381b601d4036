package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

var (
	// ErrInvalidSchema wraps every structural problem reported by Check.
	ErrInvalidSchema = errors.New("schema: invalid schema")
	// ErrUnknownOperator marks a conditional operator outside the supported set.
	ErrUnknownOperator = errors.New("schema: unknown conditional operator")
)

// Check validates the structure of a form before it is built. Every problem is
// reported; the returned error joins them and matches ErrInvalidSchema (and
// ErrUnknownOperator when an operator is unknown).
//
// Dangling key references are not errors: conditions and math treat missing
// fields as unanswered. Sections with nil questions are not errors either; the
// engine logs and skips them.
func Check(pages []Page) error {
	var errs []error
	report := func(path string, err error) {
		errs = append(errs, fmt.Errorf("%w: %s: %w", ErrInvalidSchema, path, err))
	}

	for pi, page := range pages {
		for si, section := range page.Sections {
			path := fmt.Sprintf("pages[%d].sections[%d]", pi, si)
			if section.RepeatFor != nil && section.RepeatFor.Key == "" {
				report(path+".repeatFor", errors.New("key is required"))
			}
			if section.ConditionalOn != nil {
				if err := CheckCondition(section.ConditionalOn); err != nil {
					report(path+".conditionalOn", err)
				}
			}
			checkQuestions(path, section.Questions, report)
		}
	}
	return errors.Join(errs...)
}

func checkQuestions(path string, questions []Question, report func(string, error)) {
	for qi, q := range questions {
		qpath := fmt.Sprintf("%s.questions[%d]", path, qi)
		if q.Key == "" && q.Type != TypeGroup {
			report(qpath, errors.New("key is required"))
		}
		if !q.Type.Valid() {
			report(qpath, fmt.Errorf("unknown question type %q", q.Type))
		}
		if q.ConditionalOn != nil {
			if err := CheckCondition(q.ConditionalOn); err != nil {
				report(qpath+".conditionalOn", err)
			}
		}
		if q.Math != nil {
			if !q.Math.Operation.Valid() {
				report(qpath+".math", fmt.Errorf("unknown math operation %q", q.Math.Operation))
			}
			if len(q.Math.DependsOn) == 0 {
				report(qpath+".math", errors.New("dependsOn is required"))
			}
			for _, dep := range q.Math.DependsOn {
				if dep == q.Key {
					report(qpath+".math", fmt.Errorf("field %q depends on itself", dep))
				}
			}
		}
		if q.Min != nil && q.Max != nil && *q.Min > *q.Max {
			report(qpath, fmt.Errorf("min %v exceeds max %v", *q.Min, *q.Max))
		}
		for ri, rule := range q.Validators {
			if err := CheckRule(rule); err != nil {
				report(fmt.Sprintf("%s.validators[%d]", qpath, ri), err)
			}
		}
		if len(q.Children) > 0 {
			checkQuestions(qpath, q.Children, report)
		}
	}
}

// CheckCondition validates a single condition tree.
func CheckCondition(cond Condition) error {
	switch node := cond.(type) {
	case nil:
		return errors.New("condition is nil")
	case *Leaf:
		if node == nil {
			return errors.New("condition is nil")
		}
		if node.Key == "" {
			return errors.New("leaf condition requires a key")
		}
		op := node.Op()
		if op.IsGroup() {
			return fmt.Errorf("operator %q requires conditions", op)
		}
		if !op.IsLeaf() {
			return fmt.Errorf("%w %q", ErrUnknownOperator, node.Operator)
		}
		return nil
	case *Group:
		if node == nil {
			return errors.New("condition is nil")
		}
		if !node.Operator.IsGroup() {
			if node.Operator.IsLeaf() {
				return fmt.Errorf("operator %q requires a key", node.Operator)
			}
			return fmt.Errorf("%w %q", ErrUnknownOperator, node.Operator)
		}
		if len(node.Conditions) == 0 {
			return fmt.Errorf("%s condition requires conditions", node.Operator)
		}
		var errs []error
		for i, child := range node.Conditions {
			if err := CheckCondition(child); err != nil {
				errs = append(errs, fmt.Errorf("conditions[%d]: %w", i, err))
			}
		}
		return errors.Join(errs...)
	default:
		return fmt.Errorf("unsupported condition %T", cond)
	}
}

// CheckRule validates the kind and parameters of a rule.
func CheckRule(rule ValidationRule) error {
	switch rule.Kind {
	case RuleRequired:
		return nil
	case RuleMin, RuleMax:
		if _, err := strconv.ParseFloat(rule.Param("value"), 64); err != nil {
			return fmt.Errorf("%s rule requires a numeric value", rule.Kind)
		}
	case RuleMinLength, RuleMaxLength:
		if n, err := strconv.Atoi(rule.Param("value")); err != nil || n < 0 {
			return fmt.Errorf("%s rule requires a non-negative integer value", rule.Kind)
		}
	case RulePattern:
		if _, err := regexp.Compile(rule.Param("pattern")); err != nil {
			return fmt.Errorf("pattern rule: %w", err)
		}
	case RuleMath:
		switch rule.Param("operator") {
		case MathRuleEquals, MathRuleGreaterThan, MathRuleLessThan:
		default:
			return fmt.Errorf("math rule: unknown operator %q", rule.Param("operator"))
		}
		if _, err := strconv.ParseFloat(rule.Param("value"), 64); err != nil {
			return errors.New("math rule requires a numeric value")
		}
	default:
		return fmt.Errorf("unknown rule kind %q", rule.Kind)
	}
	return nil
}
