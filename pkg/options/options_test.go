package options

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formengine/pkg/schema"
)

func loadZones(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	if err := reg.LoadFile(os.DirFS("testdata"), "timezones", "timezones.txt"); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	return reg
}

func TestLoadListSkipsCommentsAndDuplicates(t *testing.T) {
	reg := loadZones(t)
	got, ok := reg.Get("timezones")
	if !ok {
		t.Fatal("expected timezones list")
	}
	want := []schema.Option{
		{Label: "Chicago", Value: "America/Chicago"},
		{Label: "Madrid", Value: "Europe/Madrid"},
		{Label: "New York", Value: "America/New_York"},
		{Label: "Paris", Value: "Europe/Paris"},
		{Label: "UTC", Value: "UTC"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("list mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadListRejectsNilReader(t *testing.T) {
	if _, err := LoadList(nil); err == nil {
		t.Fatal("expected error for nil reader")
	}
}

func TestSearchRanksPrefixMatchesFirst(t *testing.T) {
	list, err := LoadList(strings.NewReader("America/Paramaribo\nEurope/Paris\nPacific/Palau\n"))
	if err != nil {
		t.Fatalf("LoadList: %v", err)
	}

	got := Search(list, "pa", 0, DefaultSearchConfig())
	want := []string{"Pacific/Palau", "America/Paramaribo", "Europe/Paris"}
	if diff := cmp.Diff(want, values(got)); diff != "" {
		t.Fatalf("search mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchLimits(t *testing.T) {
	list := []schema.Option{
		{Label: "a1", Value: "a1"},
		{Label: "a2", Value: "a2"},
		{Label: "a3", Value: "a3"},
	}
	cfg := SearchConfig{DefaultLimit: 2, MaxLimit: 2, EmptySearch: EmptySearchNone}

	if got := Search(list, "a", 10, cfg); len(got) != 2 {
		t.Fatalf("expected clamp to 2, got %d", len(got))
	}
	if got := Search(list, "a", -1, cfg); len(got) != 0 {
		t.Fatalf("expected no results for negative limit, got %d", len(got))
	}
	if got := Search(list, "  ", 0, cfg); len(got) != 0 {
		t.Fatalf("expected empty query to return nothing, got %d", len(got))
	}
	cfg.EmptySearch = EmptySearchTop
	if diff := cmp.Diff([]string{"a1", "a2"}, values(Search(list, "", 0, cfg))); diff != "" {
		t.Fatalf("top results mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistrySearchUnknownList(t *testing.T) {
	_, err := NewRegistry().Search("countries", "fr", 0, DefaultSearchConfig())
	if !errors.Is(err, ErrUnknownList) {
		t.Fatalf("expected ErrUnknownList, got %v", err)
	}
}

func TestResolveFillsOptionsWithoutMutatingInput(t *testing.T) {
	reg := loadZones(t)
	pages := []schema.Page{{
		Title: "Policy",
		Sections: []schema.Section{{
			Title: "Owner",
			Questions: []schema.Question{
				{Key: "tz", Type: schema.TypeSelect, OptionsFrom: "timezones"},
				{Key: "own", Type: schema.TypeSelect, OptionsFrom: "timezones", Options: []schema.Option{{Label: "UTC", Value: "UTC"}}},
				{Key: "group", Type: schema.TypeGroup, Children: []schema.Question{
					{Key: "altTz", Type: schema.TypeSelect, OptionsFrom: "timezones"},
				}},
			},
		}},
	}}

	got, err := reg.Resolve(pages)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	questions := got[0].Sections[0].Questions
	if len(questions[0].Options) != 5 {
		t.Fatalf("expected 5 options, got %d", len(questions[0].Options))
	}
	if len(questions[1].Options) != 1 {
		t.Fatalf("inline options should win, got %d", len(questions[1].Options))
	}
	if len(questions[2].Children[0].Options) != 5 {
		t.Fatalf("expected child options, got %d", len(questions[2].Children[0].Options))
	}
	if pages[0].Sections[0].Questions[0].Options != nil {
		t.Fatal("input pages were modified")
	}
	if pages[0].Sections[0].Questions[2].Children[0].Options != nil {
		t.Fatal("input children were modified")
	}
}

func TestResolveUnknownList(t *testing.T) {
	pages := []schema.Page{{Sections: []schema.Section{{
		Questions: []schema.Question{{Key: "country", Type: schema.TypeSelect, OptionsFrom: "countries"}},
	}}}}
	if _, err := NewRegistry().Resolve(pages); !errors.Is(err, ErrUnknownList) {
		t.Fatalf("expected ErrUnknownList, got %v", err)
	}
}

func values(list []schema.Option) []string {
	out := make([]string, 0, len(list))
	for _, opt := range list {
		out = append(out, opt.Value.(string))
	}
	return out
}
