package visibility

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formengine/pkg/schema"
	"github.com/goliatone/go-formengine/pkg/store"
)

func registerAll(s *store.Store, qs ...schema.Question) {
	for _, q := range qs {
		if q.Key != "" {
			s.Register(q.Key, schema.InitialValue(q), q.Validators, !q.Disabled && q.ConditionalOn == nil)
		}
		registerAll(s, q.Children...)
	}
}

func fieldState(t *testing.T, s *store.Store, key string) store.FieldState {
	t.Helper()
	field, ok := s.Get(key)
	if !ok {
		t.Fatalf("field %q not registered", key)
	}
	return field
}

func TestApplyClearsAndDisablesHiddenField(t *testing.T) {
	t.Parallel()

	s := store.New()
	zip := schema.Question{
		Key:           "zip",
		ConditionalOn: schema.In("state", "CA", "FL"),
		Validators:    []schema.ValidationRule{schema.Required()},
	}
	registerAll(s, schema.Question{Key: "state"}, zip)

	_ = s.SetValue("state", "CA", store.SetOptions{})
	p := NewPropagator(s)
	if !p.Apply(zip, true) {
		t.Fatalf("zip should be visible for CA")
	}
	_ = s.SetValue("zip", "90210", store.SetOptions{})
	if f := fieldState(t, s, "zip"); !f.Enabled || len(f.Validators()) != 1 {
		t.Fatalf("visible zip should be enabled with validators: %+v", f)
	}

	notified := false
	s.OnChange("zip", func(string, any) { notified = true })

	_ = s.SetValue("state", "NY", store.SetOptions{})
	if p.Apply(zip, true) {
		t.Fatalf("zip should be hidden for NY")
	}
	f := fieldState(t, s, "zip")
	if f.Enabled || f.Value != nil || len(f.Validators()) != 0 {
		t.Fatalf("hidden zip should be disabled, cleared and unvalidated: %+v", f)
	}
	if !f.Valid() {
		t.Fatalf("hidden field must never be invalid")
	}
	if notified {
		t.Fatalf("clearing a hidden field must be silent")
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	t.Parallel()

	s := store.New()
	q := schema.Question{
		Key:           "reason",
		ConditionalOn: schema.Equals("wantsExtended", "Yes"),
		Validators:    []schema.ValidationRule{schema.Required()},
	}
	registerAll(s, schema.Question{Key: "wantsExtended"}, q)
	_ = s.SetValue("wantsExtended", "No", store.SetOptions{})
	_ = s.SetValue("reason", "leftover", store.SetOptions{})

	p := NewPropagator(s)
	first := p.Pages([]schema.Page{{Sections: []schema.Section{{Questions: []schema.Question{{Key: "wantsExtended"}, q}}}}})
	after := s.Values()
	second := p.Pages([]schema.Page{{Sections: []schema.Section{{Questions: []schema.Question{{Key: "wantsExtended"}, q}}}}})

	if diff := cmp.Diff([]string{"reason"}, first.Cleared); diff != "" {
		t.Fatalf("first pass cleared mismatch (-want +got):\n%s", diff)
	}
	if second.Changed() {
		t.Fatalf("second pass should be a no-op, got %+v", second)
	}
	if diff := cmp.Diff(after, s.Values()); diff != "" {
		t.Fatalf("values changed on second pass (-first +second):\n%s", diff)
	}
}

func TestChildrenInheritAncestorVisibility(t *testing.T) {
	t.Parallel()

	s := store.New()
	parent := schema.Question{
		Key:           "hasPets",
		ConditionalOn: schema.Equals("owner", "Yes"),
		Children: []schema.Question{
			{Key: "petName", Children: []schema.Question{{Key: "petNickname"}}},
		},
	}
	registerAll(s, schema.Question{Key: "owner"}, parent)
	_ = s.SetValue("petNickname", "Rex", store.SetOptions{})

	p := NewPropagator(s)
	_ = s.SetValue("owner", "No", store.SetOptions{})
	p.Apply(parent, true)

	for _, key := range []string{"hasPets", "petName", "petNickname"} {
		if f := fieldState(t, s, key); f.Enabled {
			t.Fatalf("%s should be disabled under a hidden ancestor", key)
		}
	}
	if got := s.Value("petNickname"); got != nil {
		t.Fatalf("grandchild value should be cleared, got %v", got)
	}

	_ = s.SetValue("owner", "Yes", store.SetOptions{})
	p.Apply(parent, true)
	if f := fieldState(t, s, "petNickname"); !f.Enabled {
		t.Fatalf("grandchild should be enabled once the chain is visible")
	}
}

func TestSectionVisibilityDominatesQuestions(t *testing.T) {
	t.Parallel()

	s := store.New()
	section := schema.Section{
		Title:         "Extended Coverage",
		ConditionalOn: schema.Equals("wantsExtended", "Yes"),
		Questions: []schema.Question{
			{Key: "extendedCoverageReason", Validators: []schema.ValidationRule{schema.Required()}},
			{Key: "extendedCoverageOptions", Type: schema.TypeCheckboxGroup},
		},
	}
	registerAll(s, append([]schema.Question{{Key: "wantsExtended"}}, section.Questions...)...)
	_ = s.SetValue("extendedCoverageReason", "teeth", store.SetOptions{})
	_ = s.SetValue("extendedCoverageOptions", []any{"Dental"}, store.SetOptions{})

	p := NewPropagator(s)
	if p.Section(section) {
		t.Fatalf("section should be hidden while wantsExtended is unanswered")
	}
	if got := s.Value("extendedCoverageReason"); got != nil {
		t.Fatalf("expected reason cleared, got %v", got)
	}
	if diff := cmp.Diff([]any{}, s.Value("extendedCoverageOptions")); diff != "" {
		t.Fatalf("checkbox group must clear to an empty list (-want +got):\n%s", diff)
	}

	_ = s.SetValue("wantsExtended", "Yes", store.SetOptions{})
	if !p.Section(section) {
		t.Fatalf("section should be visible")
	}
	if f := fieldState(t, s, "extendedCoverageReason"); !f.Enabled || f.Valid() {
		t.Fatalf("revealed required field should be enabled and invalid while empty: %+v", f)
	}
}

func TestStaticallyDisabledQuestionStaysDisabled(t *testing.T) {
	t.Parallel()

	s := store.New()
	q := schema.Question{Key: "premium", Disabled: true}
	registerAll(s, q)

	p := NewPropagator(s)
	if !p.Apply(q, true) {
		t.Fatalf("question should be visible")
	}
	if f := fieldState(t, s, "premium"); f.Enabled {
		t.Fatalf("disabled question must not be enabled by visibility")
	}
}

func TestSharedKeyIsVisibleWhenAnyOccurrenceIs(t *testing.T) {
	t.Parallel()

	s := store.New()
	registerAll(s, schema.Question{Key: "mode"}, schema.Question{Key: "note"})
	_ = s.SetValue("mode", "a", store.SetOptions{})
	_ = s.SetValue("note", "keep me", store.SetOptions{})

	pages := []schema.Page{{Sections: []schema.Section{
		{ConditionalOn: schema.Equals("mode", "a"), Questions: []schema.Question{{Key: "note"}}},
		{ConditionalOn: schema.Equals("mode", "b"), Questions: []schema.Question{{Key: "note"}}},
		{Questions: []schema.Question{{Key: "mode"}}},
	}}}

	p := NewPropagator(s)
	res := p.Pages(pages)
	if len(res.Cleared) != 0 {
		t.Fatalf("note is visible in one section and must not be cleared: %+v", res)
	}
	if got := s.Value("note"); got != "keep me" {
		t.Fatalf("unexpected note value %v", got)
	}
	if visible, known := p.Visible("note"); !visible || !known {
		t.Fatalf("expected recorded verdict for note")
	}
}

func TestInstanceConditionsResolveWithinInstance(t *testing.T) {
	t.Parallel()

	section := schema.Section{
		RepeatFor: &schema.RepeatFor{Key: "count"},
		Questions: []schema.Question{
			{Key: "hasVet"},
			{Key: "vetName", ConditionalOn: schema.Equals("hasVet", "Yes")},
		},
	}
	s := store.New()
	s.Register("count", 2, nil, true)
	for i := range 2 {
		s.Register(schema.InstanceKey("hasVet", i), nil, nil, true)
		s.Register(schema.InstanceKey("vetName", i), nil, nil, true)
	}
	_ = s.SetValue("hasVet_0", "Yes", store.SetOptions{})
	_ = s.SetValue("hasVet_1", "No", store.SetOptions{})
	_ = s.SetValue("vetName_1", "stale", store.SetOptions{})

	p := NewPropagator(s)
	p.Section(section)

	if f := fieldState(t, s, "vetName_0"); !f.Enabled {
		t.Fatalf("vetName_0 should follow hasVet_0")
	}
	if f := fieldState(t, s, "vetName_1"); f.Enabled || f.Value != nil {
		t.Fatalf("vetName_1 should be hidden and cleared: %+v", f)
	}
	if !p.ApplyInstance(section, section.Questions[1], 0, true) {
		t.Fatalf("ApplyInstance should report vetName_0 visible")
	}
}

func TestRevealedFieldsAreReported(t *testing.T) {
	t.Parallel()

	s := store.New()
	q := schema.Question{Key: "total", ConditionalOn: schema.IsTruthy("show")}
	registerAll(s, schema.Question{Key: "show"}, q)
	pages := []schema.Page{{Sections: []schema.Section{{Questions: []schema.Question{{Key: "show"}, q}}}}}

	p := NewPropagator(s)
	p.Pages(pages)
	_ = s.SetValue("show", true, store.SetOptions{})
	res := p.Pages(pages)
	if diff := cmp.Diff([]string{"total"}, res.Revealed); diff != "" {
		t.Fatalf("revealed mismatch (-want +got):\n%s", diff)
	}
}
