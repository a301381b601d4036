package schema

import (
	"strconv"
)

const (
	RuleRequired  = "required"
	RuleMin       = "min"
	RuleMax       = "max"
	RuleMinLength = "minLength"
	RuleMaxLength = "maxLength"
	RulePattern   = "pattern"
	RuleMath      = "math"
)

// Math rule comparison operators.
const (
	MathRuleEquals      = "equals"
	MathRuleGreaterThan = "greaterThan"
	MathRuleLessThan    = "lessThan"
)

// ValidationRule represents a single constraint applied to a field. Numeric
// bounds and length limits keep their threshold in Params["value"]; pattern
// rules keep the expression in Params["pattern"]; math rules carry
// Params["operator"], Params["value"] and an optional Params["message"].
type ValidationRule struct {
	Kind   string            `json:"kind"`
	Params map[string]string `json:"params,omitempty"`
}

// Param returns the named parameter or "".
func (r ValidationRule) Param(name string) string {
	if r.Params == nil {
		return ""
	}
	return r.Params[name]
}

func Required() ValidationRule {
	return ValidationRule{Kind: RuleRequired}
}

func Min(v float64) ValidationRule {
	return numberRule(RuleMin, v)
}

func Max(v float64) ValidationRule {
	return numberRule(RuleMax, v)
}

func MinLength(n int) ValidationRule {
	return ValidationRule{Kind: RuleMinLength, Params: map[string]string{"value": strconv.Itoa(n)}}
}

func MaxLength(n int) ValidationRule {
	return ValidationRule{Kind: RuleMaxLength, Params: map[string]string{"value": strconv.Itoa(n)}}
}

func Pattern(expr string) ValidationRule {
	return ValidationRule{Kind: RulePattern, Params: map[string]string{"pattern": expr}}
}

// MathRule compares a numeric value against threshold. An empty message
// falls back to a generated one.
func MathRule(operator string, threshold float64, message string) ValidationRule {
	params := map[string]string{
		"operator": operator,
		"value":    strconv.FormatFloat(threshold, 'f', -1, 64),
	}
	if message != "" {
		params["message"] = message
	}
	return ValidationRule{Kind: RuleMath, Params: params}
}

func numberRule(kind string, v float64) ValidationRule {
	return ValidationRule{Kind: kind, Params: map[string]string{"value": strconv.FormatFloat(v, 'f', -1, 64)}}
}
