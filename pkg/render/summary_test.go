package render_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formengine/pkg/engine"
	"github.com/goliatone/go-formengine/pkg/render"
	"github.com/goliatone/go-formengine/pkg/schema"
	"github.com/goliatone/go-formengine/pkg/testsupport"
)

func answeredZoo(t *testing.T) *engine.Engine {
	t.Helper()
	e, err := engine.New(testsupport.ZooInsurance())
	if err != nil {
		t.Fatalf("engine.New returned error: %v", err)
	}
	answers := testsupport.ZooInsuranceAnswers()
	answers["wantsExtended"] = "Yes"
	answers["numberOfTigers"] = 2
	answers["animalName_1"] = "Shere Khan"
	for _, key := range []string{"name", "address", "phone", "state", "policyStartDate", "animalType", "animalPrice", "wantsExtended", "tigersAreOld", "numberOfTigers", "animalName_1"} {
		if err := e.SetValue(key, answers[key]); err != nil {
			t.Fatalf("SetValue(%q): %v", key, err)
		}
	}
	for _, v := range []string{"Vision", "Dental"} {
		if err := e.ToggleCheckboxValue("extendedCoverageOptions", v); err != nil {
			t.Fatalf("toggle %s: %v", v, err)
		}
	}
	return e
}

func sectionTitles(page render.PageSummary) []string {
	var out []string
	for _, s := range page.Sections {
		out = append(out, s.Title)
	}
	return out
}

func TestSummaryListsVisibleAnswers(t *testing.T) {
	t.Parallel()

	pages := render.Summary(answeredZoo(t))
	if len(pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(pages))
	}

	wantTitles := []string{
		"Insured Details",
		"Animal Details",
		"Animal Questionnaire 1",
		"Animal Questionnaire 2",
		"Extended Coverage Questionnaire",
	}
	if diff := cmp.Diff(wantTitles, sectionTitles(pages[0])); diff != "" {
		t.Fatalf("section titles mismatch (-want +got):\n%s", diff)
	}

	for _, answer := range pages[0].Sections[0].Answers {
		if answer.Key == "zip" {
			t.Fatalf("zip is hidden for NY and must not be summarised")
		}
	}

	wantTiger := render.SectionSummary{
		Title:    "Animal Questionnaire 2",
		Instance: 1,
		Answers: []render.Answer{
			{Key: "animalName_1", Label: "Name of Tiger", Value: "Shere Khan"},
			{Key: "animalAge_1", Label: "Age of Tiger", Value: render.EmptyAnswer},
		},
	}
	if diff := cmp.Diff(wantTiger, pages[0].Sections[3]); diff != "" {
		t.Fatalf("tiger section mismatch (-want +got):\n%s", diff)
	}

	extended := pages[0].Sections[4].Answers
	if got := extended[1].Value; got != "Vision, Dental" {
		t.Fatalf("checkbox answer = %q", got)
	}

	if diff := cmp.Diff([]string{"Monthly Premium", "Payment Details"}, sectionTitles(pages[1])); diff != "" {
		t.Fatalf("payment sections mismatch (-want +got):\n%s", diff)
	}
	if len(pages[2].Sections) != 0 {
		t.Fatalf("confirmation page has no answers: %+v", pages[2])
	}
}

func TestFormatAnswer(t *testing.T) {
	t.Parallel()

	q := schema.Question{Key: "plan", Options: []schema.Option{{Label: "Gold plan", Value: 1}, {Label: "Basic", Value: 2}}}
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{name: "nil", value: nil, want: "-"},
		{name: "blank", value: "", want: "-"},
		{name: "empty list", value: []any{}, want: "-"},
		{name: "option label", value: 1, want: "Gold plan"},
		{name: "option from text", value: "2", want: "Basic"},
		{name: "list", value: []any{2, 1}, want: "Basic, Gold plan"},
		{name: "number", value: 2.5, want: "2.5"},
		{name: "markup", value: "<b>bold</b> & brave", want: "bold & brave"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := render.FormatAnswer(q, tt.value); got != tt.want {
				t.Fatalf("FormatAnswer(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestRenderers(t *testing.T) {
	t.Parallel()

	pages := render.Summary(answeredZoo(t))
	registry := render.DefaultRegistry()
	if diff := cmp.Diff([]string{"json", "text"}, registry.List()); diff != "" {
		t.Fatalf("renderers mismatch (-want +got):\n%s", diff)
	}

	text, err := registry.Get("text")
	if err != nil {
		t.Fatalf("Get(text): %v", err)
	}
	out, err := text.Render(context.Background(), pages, render.RenderOptions{
		Errors: map[string][]string{"animalAge_1": {"This field is required"}},
	})
	if err != nil {
		t.Fatalf("Render text: %v", err)
	}
	body := string(out)
	for _, want := range []string{"1. Insured Information", "Animal Questionnaire 2", "Shere Khan", "(This field is required)"} {
		if !strings.Contains(body, want) {
			t.Fatalf("text output missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "3. Confirmation") {
		t.Fatalf("empty pages should be skipped by default:\n%s", body)
	}

	js, _ := registry.Get("json")
	out, err = js.Render(context.Background(), pages, render.RenderOptions{})
	if err != nil {
		t.Fatalf("Render json: %v", err)
	}
	if !strings.Contains(string(out), `"key": "animalName_1"`) {
		t.Fatalf("json output missing instance key:\n%s", out)
	}

	if _, err := registry.Get("html"); err == nil {
		t.Fatalf("expected an error for an unknown renderer")
	}
}
