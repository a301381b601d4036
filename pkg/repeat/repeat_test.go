package repeat

import (
	"errors"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formengine/pkg/compute"
	"github.com/goliatone/go-formengine/pkg/schema"
	"github.com/goliatone/go-formengine/pkg/store"
)

func tigerSection() schema.Section {
	return schema.Section{
		Title:         "Animal Questionnaire",
		ConditionalOn: schema.GreaterThan("numberOfTigers", 0),
		RepeatFor:     &schema.RepeatFor{Key: "numberOfTigers"},
		Questions: []schema.Question{
			{Key: "animalName", Validators: []schema.ValidationRule{schema.Required()}},
			{Key: "animalAge", Validators: []schema.ValidationRule{schema.Required()}},
		},
	}
}

func setup(t *testing.T) (*store.Store, *compute.Graph, *Manager) {
	t.Helper()
	s := store.New()
	s.Register("numberOfTigers", nil, nil, true)
	g := compute.New(s)
	return s, g, New(s, g)
}

func instanceKeys(s *store.Store) []string {
	var out []string
	for _, key := range s.Keys() {
		if _, ok := schema.ParseInstanceKey("animalName", key); ok {
			out = append(out, key)
			continue
		}
		if _, ok := schema.ParseInstanceKey("animalAge", key); ok {
			out = append(out, key)
		}
	}
	slices.Sort(out)
	return out
}

func TestRepeatLifecycle(t *testing.T) {
	t.Parallel()

	s, _, m := setup(t)
	b, err := m.Attach(tigerSection())
	if err != nil {
		t.Fatalf("Attach returned error: %v", err)
	}
	if len(instanceKeys(s)) != 0 {
		t.Fatalf("no instances expected for an empty count")
	}

	_ = s.SetValue("numberOfTigers", 3, store.SetOptions{})
	want := []string{"animalAge_0", "animalAge_1", "animalAge_2", "animalName_0", "animalName_1", "animalName_2"}
	if diff := cmp.Diff(want, instanceKeys(s)); diff != "" {
		t.Fatalf("instances after 3 mismatch (-want +got):\n%s", diff)
	}
	if b.Count() != 3 {
		t.Fatalf("expected count 3, got %d", b.Count())
	}

	field, _ := s.Get("animalName_1")
	if diff := cmp.Diff([]schema.ValidationRule{schema.Required()}, field.Declared); diff != "" {
		t.Fatalf("instance should inherit template validators (-want +got):\n%s", diff)
	}

	_ = s.SetValue("numberOfTigers", 1, store.SetOptions{})
	if diff := cmp.Diff([]string{"animalAge_0", "animalName_0"}, instanceKeys(s)); diff != "" {
		t.Fatalf("instances after 1 mismatch (-want +got):\n%s", diff)
	}
	if s.Has("animalName_2") || s.Has("animalAge_1") {
		t.Fatalf("dropped instances must be removed, not disabled")
	}
}

func TestDecreaseDiscardsAnswers(t *testing.T) {
	t.Parallel()

	s, _, m := setup(t)
	if _, err := m.Attach(tigerSection()); err != nil {
		t.Fatalf("Attach returned error: %v", err)
	}

	_ = s.SetValue("numberOfTigers", 3, store.SetOptions{})
	_ = s.SetValue("animalName_2", "Shere Khan", store.SetOptions{})
	_ = s.SetValue("numberOfTigers", 2, store.SetOptions{})
	_ = s.SetValue("numberOfTigers", 3, store.SetOptions{})

	if got := s.Value("animalName_2"); got != nil {
		t.Fatalf("rebuilt instance should start empty, got %v", got)
	}
}

func TestSameCountKeepsAnswers(t *testing.T) {
	t.Parallel()

	s, _, m := setup(t)
	if _, err := m.Attach(tigerSection()); err != nil {
		t.Fatalf("Attach returned error: %v", err)
	}

	_ = s.SetValue("numberOfTigers", 2, store.SetOptions{})
	_ = s.SetValue("animalName_0", "Tony", store.SetOptions{})
	_ = s.SetValue("numberOfTigers", "2", store.SetOptions{})

	if got := s.Value("animalName_0"); got != "Tony" {
		t.Fatalf("an unchanged count should not rebuild, got %v", got)
	}
}

func TestZeroAndGarbageCounts(t *testing.T) {
	t.Parallel()

	s, _, m := setup(t)
	if _, err := m.Attach(tigerSection()); err != nil {
		t.Fatalf("Attach returned error: %v", err)
	}

	for _, count := range []any{2, 0, 2, "lots", 2, -4} {
		_ = s.SetValue("numberOfTigers", count, store.SetOptions{})
	}
	if got := instanceKeys(s); len(got) != 0 {
		t.Fatalf("expected no instances, got %v", got)
	}
}

func TestAttachHonoursPreloadedCount(t *testing.T) {
	t.Parallel()

	s, _, m := setup(t)
	_ = s.SetValue("numberOfTigers", 2, store.SetOptions{})

	b, err := m.Attach(tigerSection())
	if err != nil {
		t.Fatalf("Attach returned error: %v", err)
	}
	if b.Count() != 2 || !s.Has("animalAge_1") {
		t.Fatalf("expected two instances from the preloaded count")
	}
}

func TestInstanceMathIsRewired(t *testing.T) {
	t.Parallel()

	s, g, m := setup(t)
	s.Register("feePerAnimal", 10, nil, true)

	section := schema.Section{
		Title:     "Costs",
		RepeatFor: &schema.RepeatFor{Key: "numberOfTigers"},
		Questions: []schema.Question{
			{Key: "food"},
			{Key: "vet"},
			{Key: "cost", Math: &schema.Math{Operation: schema.MathSum, DependsOn: []string{"food", "vet", "feePerAnimal"}}},
		},
	}
	if _, err := m.Attach(section); err != nil {
		t.Fatalf("Attach returned error: %v", err)
	}

	_ = s.SetValue("numberOfTigers", 2, store.SetOptions{})
	_ = s.SetValue("food_0", 5, store.SetOptions{})
	_ = s.SetValue("vet_1", 7, store.SetOptions{})

	if got := s.Value("cost_0"); got != 15.0 {
		t.Fatalf("cost_0 = %v, want 15", got)
	}
	if got := s.Value("cost_1"); got != 17.0 {
		t.Fatalf("cost_1 = %v, want 17", got)
	}

	_ = s.SetValue("numberOfTigers", 1, store.SetOptions{})
	if g.Wired("cost_1") {
		t.Fatalf("teardown must unwire dropped instances")
	}
	if diff := cmp.Diff([]string{"cost_0"}, g.Targets()); diff != "" {
		t.Fatalf("wired targets mismatch (-want +got):\n%s", diff)
	}
}

func TestRebuildRecomputesOutsideDependents(t *testing.T) {
	t.Parallel()

	s, g, m := setup(t)
	s.Register("totalAge", nil, nil, true)
	if err := g.Wire("totalAge", schema.Math{Operation: schema.MathSum, DependsOn: []string{"animalAge_0", "animalAge_1"}}); err != nil {
		t.Fatalf("Wire returned error: %v", err)
	}
	if _, err := m.Attach(tigerSection()); err != nil {
		t.Fatalf("Attach returned error: %v", err)
	}

	_ = s.SetValue("numberOfTigers", 2, store.SetOptions{})
	_ = s.SetValue("animalAge_0", 3, store.SetOptions{})
	_ = s.SetValue("animalAge_1", 4, store.SetOptions{})
	if got := s.Value("totalAge"); got != 7.0 {
		t.Fatalf("totalAge = %v, want 7", got)
	}

	_ = s.SetValue("numberOfTigers", 3, store.SetOptions{})
	if got := s.Value("totalAge"); got != 0.0 {
		t.Fatalf("totalAge after rebuild = %v, want 0", got)
	}
	_ = s.SetValue("animalAge_0", 10, store.SetOptions{})
	if got := s.Value("totalAge"); got != 10.0 {
		t.Fatalf("totalAge = %v, want 10", got)
	}
	if !slices.Contains(g.Dependents("animalAge_1"), "totalAge") {
		t.Fatalf("totalAge should still read animalAge_1")
	}
}

func TestAttachRejectsPlainSections(t *testing.T) {
	t.Parallel()

	_, _, m := setup(t)
	if _, err := m.Attach(schema.Section{Title: "plain", Questions: []schema.Question{}}); !errors.Is(err, ErrNotRepeating) {
		t.Fatalf("expected ErrNotRepeating, got %v", err)
	}
}

func TestCountIsCapped(t *testing.T) {
	t.Parallel()

	s, _, m := setup(t)
	b, _ := m.Attach(tigerSection())
	_ = s.SetValue("numberOfTigers", 1e7, store.SetOptions{})
	if b.Count() != schema.MaxRepeatInstances {
		t.Fatalf("expected count capped at %d, got %d", schema.MaxRepeatInstances, b.Count())
	}
}
