package render_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/goliatone/go-formengine/pkg/render"
)

func TestMapErrorPayload(t *testing.T) {
	keys := []string{"name", "zip", "animalName_0", "animalName_1", "extendedCoverageOptions"}

	payload := map[string][]string{
		"/body/name":                 {"Name is required"},
		"zip":                        {" Zip not served ", "Zip not served"},
		"$.data.animalName[1]":       {"Tiger name taken"},
		"request/animalName/0":       {"Too short"},
		"extendedCoverageOptions.2":  {"Transport unavailable"},
		"non_field_errors":           {"Premium service unavailable"},
		"request/body/unknown-field": {"Should fall back to form errors"},
		"":                           {"Unscoped form error"},
	}

	mapped := render.MapErrorPayload(keys, payload)

	wantFields := map[string][]string{
		"name":                    {"Name is required"},
		"zip":                     {"Zip not served"},
		"animalName_1":            {"Tiger name taken"},
		"animalName_0":            {"Too short"},
		"extendedCoverageOptions": {"Transport unavailable"},
	}
	if diff := cmp.Diff(wantFields, mapped.Fields); diff != "" {
		t.Fatalf("field errors mismatch (-want +got):\n%s", diff)
	}

	wantForm := []string{"Premium service unavailable", "Should fall back to form errors", "Unscoped form error"}
	if diff := cmp.Diff(wantForm, mapped.Form, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
		t.Fatalf("form errors mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeFormErrors(t *testing.T) {
	merged := render.MergeFormErrors([]string{" First ", "Second"}, "Second", "third", "  ")
	if diff := cmp.Diff([]string{"First", "Second", "third"}, merged); diff != "" {
		t.Fatalf("merged mismatch (-want +got):\n%s", diff)
	}
}
