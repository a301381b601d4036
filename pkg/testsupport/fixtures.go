package testsupport

import (
	"bytes"
	"context"
	json "github.com/goccy/go-json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formengine/pkg/schema"
)

var required = []schema.ValidationRule{schema.Required()}

func float(v float64) *float64 { return &v }

func options(values ...string) []schema.Option {
	out := make([]schema.Option, 0, len(values))
	for _, v := range values {
		out = append(out, schema.Option{Label: v, Value: v})
	}
	return out
}

// ZooInsurance returns the three page zoo animal insurance form used across
// the test suites. Each call returns a fresh copy.
func ZooInsurance() []schema.Page {
	return []schema.Page{
		{
			Title: "Insured Information",
			Sections: []schema.Section{
				{
					Title: "Insured Details",
					Questions: []schema.Question{
						{Key: "name", Label: "Name", Type: schema.TypeText, Validators: required},
						{Key: "address", Label: "Address", Type: schema.TypeText, Validators: required},
						{Key: "phone", Label: "Phone Number", Type: schema.TypeText, InputType: "tel", Validators: required},
						{Key: "state", Label: "State", Type: schema.TypeSelect, Options: options("CA", "TX", "NY", "FL"), Validators: required},
						{Key: "zip", Label: "Zip Code", Type: schema.TypeText, ConditionalOn: schema.In("state", "CA", "FL"), Validators: required},
						{Key: "policyStartDate", Label: "Policy Start Date", Type: schema.TypeText, Validators: required},
					},
				},
				{
					Title: "Animal Details",
					Questions: []schema.Question{
						{Key: "animalType", Label: "Animal Type", Type: schema.TypeSelect, Options: options("Lion", "Tiger", "Zebra"), Validators: required},
						{Key: "animalPrice", Label: "Animal Price", Type: schema.TypeText, Validators: required},
						{Key: "wantsExtended", Label: "Would you like extended coverage?", Type: schema.TypeRadio, Options: options("Yes", "No"), Validators: required},
						{Key: "tigersAreOld", Label: "Are your tigers seniors?", Type: schema.TypeRadio, Options: options("Yes", "No"), Validators: required},
						{Key: "numberOfTigers", Label: "How many tigers do you have?", Type: schema.TypeNumber, Min: float(0), Validators: required},
					},
				},
				{
					Title:         "Animal Questionnaire",
					ConditionalOn: schema.GreaterThan("numberOfTigers", 0),
					RepeatFor:     &schema.RepeatFor{Key: "numberOfTigers"},
					Questions: []schema.Question{
						{Key: "animalName", Label: "Name of Tiger", Type: schema.TypeText, Validators: required},
						{Key: "animalAge", Label: "Age of Tiger", Type: schema.TypeText, Validators: required},
					},
				},
				{
					Title: "Old Tigers Only Questionnaire",
					ConditionalOn: schema.All(
						schema.GreaterThanOrEqual("numberOfTigers", 5),
						schema.Equals("tigersAreOld", "Yes"),
					),
					Questions: []schema.Question{
						{Key: "seniorVet", Label: "Name of the senior care vet", Type: schema.TypeText, Validators: required},
						{Key: "seniorDiet", Label: "Describe the senior diet", Type: schema.TypeTextarea, Validators: required},
					},
				},
				{
					Title:         "Extended Coverage Questionnaire",
					ConditionalOn: schema.Equals("wantsExtended", "Yes"),
					Questions: []schema.Question{
						{Key: "extendedCoverageReason", Label: "Please explain why you need extended coverage", Type: schema.TypeTextarea, Validators: required},
						{Key: "extendedCoverageOptions", Label: "Select the types of coverage you want", Type: schema.TypeCheckboxGroup, Options: options("Dental", "Vision", "Injury", "Transport"), Validators: required},
					},
				},
			},
		},
		{
			Title: "Payment",
			Sections: []schema.Section{
				{Title: "Review Details", Questions: []schema.Question{}},
				{
					Title:     "Monthly Premium",
					Questions: []schema.Question{{Key: "monthlyPremium", Label: "Premium Amount", Type: schema.TypeText}},
				},
				{
					Title: "Payment Details",
					Questions: []schema.Question{
						{Key: "paymentType", Label: "Payment Method", Type: schema.TypeSelect, Options: options("Credit Card", "ACH"), Validators: required},
						{Key: "accountNumber", Label: "Account/Card Number", Type: schema.TypeText, Validators: required},
						{Key: "expirationDate", Label: "Expiration Date", Type: schema.TypeText, Validators: required, ConditionalOn: schema.Equals("paymentType", "Credit Card")},
						{Key: "routingNumber", Label: "Routing Number", Type: schema.TypeText, Validators: required, ConditionalOn: schema.Equals("paymentType", "ACH")},
					},
				},
			},
		},
		{
			Title:    "Confirmation",
			Sections: []schema.Section{{Title: "Insurance Summary", Questions: []schema.Question{}}},
		},
	}
}

// ZooInsuranceAnswers fills every field of the first page of ZooInsurance
// except the repeated tiger instances.
func ZooInsuranceAnswers() map[string]any {
	return map[string]any{
		"name":            "Ann Keeper",
		"address":         "1 Savannah Way",
		"phone":           "555-0100",
		"state":           "NY",
		"policyStartDate": "2026-01-01",
		"animalType":      "Tiger",
		"animalPrice":     "12000",
		"wantsExtended":   "No",
		"tigersAreOld":    "No",
	}
}

// Ledger returns a single page form with computed fields: total is the sum
// of a and b, net subtracts the fee from the total, and the net must stay
// above zero.
func Ledger() []schema.Page {
	return []schema.Page{{
		Title: "Ledger",
		Sections: []schema.Section{{
			Title: "Amounts",
			Questions: []schema.Question{
				{Key: "a", Label: "A", Type: schema.TypeNumber},
				{Key: "b", Label: "B", Type: schema.TypeNumber},
				{Key: "fee", Label: "Fee", Type: schema.TypeNumber, Min: float(0), Max: float(100)},
				{Key: "total", Label: "Total", Type: schema.TypeNumber, Math: &schema.Math{Operation: schema.MathSum, DependsOn: []string{"a", "b"}}},
				{
					Key:        "net",
					Label:      "Net",
					Type:       schema.TypeNumber,
					Math:       &schema.Math{Operation: schema.MathSubtract, DependsOn: []string{"total", "fee"}},
					Validators: []schema.ValidationRule{schema.MathRule(schema.MathRuleGreaterThan, 0, "")},
				},
			},
		}},
	}}
}

// WriteGolden writes value as indented JSON to path when UPDATE_GOLDENS is
// set.
func WriteGolden(t *testing.T, path string, value any) {
	t.Helper()

	if os.Getenv("UPDATE_GOLDENS") == "" {
		return
	}
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		t.Fatalf("marshal golden: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir golden dir: %v", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write golden: %v", err)
	}
}

// CompareGolden returns a diff string if the values differ.
func CompareGolden(want, got any) string {
	return cmp.Diff(want, got)
}

// MustReadGolden reads a golden file and returns its raw bytes.
func MustReadGolden(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read golden: %v", err)
	}
	return data
}

// MustReadGoldenString reads a golden file and returns its string content.
func MustReadGoldenString(t *testing.T, path string) string {
	t.Helper()
	return string(MustReadGolden(t, path))
}

// WriteMaybeGolden updates a golden file when UPDATE_GOLDENS is set. Returns
// true if the golden was written (test should exit early).
func WriteMaybeGolden(t *testing.T, path string, data []byte) bool {
	t.Helper()
	if os.Getenv("UPDATE_GOLDENS") == "" {
		return false
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir golden dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write golden: %v", err)
	}
	return true
}

// Context returns a background context for tests.
func Context() context.Context {
	return context.Background()
}

// CaptureOutput runs render against a buffer, returning both the string
// result and what was written.
func CaptureOutput(t *testing.T, render func(io.Writer) (string, error)) (string, string) {
	t.Helper()

	var buf bytes.Buffer
	out, err := render(&buf)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	return out, buf.String()
}
