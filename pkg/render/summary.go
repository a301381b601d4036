package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formengine/internal/coerce"
	"github.com/goliatone/go-formengine/pkg/schema"
)

// EmptyAnswer is shown for unanswered questions.
const EmptyAnswer = "-"

// Answers is the read side of a built form. *engine.Engine satisfies it.
type Answers interface {
	Pages() []schema.Page
	Value(key string) any
	IsVisible(q schema.Question) bool
	IsSectionVisible(section schema.Section) bool
	IsInstanceVisible(section schema.Section, q schema.Question, index int) bool
	InstanceCount(section schema.Section) int
}

// Answer is one summarised question.
type Answer struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// SectionSummary lists the answers of a visible section. Repeated sections
// produce one summary per instance with Instance set to its index; other
// sections use -1.
type SectionSummary struct {
	Title    string   `json:"title"`
	Instance int      `json:"instance"`
	Answers  []Answer `json:"answers"`
}

// PageSummary groups the visible sections of a page.
type PageSummary struct {
	Title    string           `json:"title"`
	Sections []SectionSummary `json:"sections"`
}

// Summary walks the visible part of a form and formats every answer. Pages
// without visible answers are kept so page numbering matches the form.
func Summary(form Answers) []PageSummary {
	pages := form.Pages()
	out := make([]PageSummary, 0, len(pages))
	for _, page := range pages {
		ps := PageSummary{Title: clean(page.Title), Sections: []SectionSummary{}}
		for _, section := range page.Sections {
			if section.Questions == nil || !form.IsSectionVisible(section) {
				continue
			}
			if !section.Repeats() {
				ss := SectionSummary{Title: clean(section.Title), Instance: -1}
				ss.Answers = collect(form, section.Questions, func(q schema.Question) (string, bool) {
					return q.Key, form.IsVisible(q)
				})
				if len(ss.Answers) > 0 {
					ps.Sections = append(ps.Sections, ss)
				}
				continue
			}
			for i := range form.InstanceCount(section) {
				ss := SectionSummary{
					Title:    fmt.Sprintf("%s %d", clean(section.Title), i+1),
					Instance: i,
				}
				ss.Answers = collect(form, section.Questions, func(q schema.Question) (string, bool) {
					return schema.InstanceKey(q.Key, i), form.IsInstanceVisible(section, q, i)
				})
				if len(ss.Answers) > 0 {
					ps.Sections = append(ps.Sections, ss)
				}
			}
		}
		out = append(out, ps)
	}
	return out
}

func collect(form Answers, questions []schema.Question, resolve func(schema.Question) (string, bool)) []Answer {
	var out []Answer
	for _, q := range questions {
		if q.Key == "" {
			out = append(out, collect(form, q.Children, resolve)...)
			continue
		}
		key, visible := resolve(q)
		if !visible {
			continue
		}
		label := q.Label
		if label == "" {
			label = q.Key
		}
		out = append(out, Answer{Key: key, Label: clean(label), Value: FormatAnswer(q, form.Value(key))})
		out = append(out, collect(form, q.Children, resolve)...)
	}
	return out
}

// FormatAnswer renders value for display. Option values are replaced by
// their labels, lists are joined with ", " and empty answers become
// EmptyAnswer.
func FormatAnswer(q schema.Question, value any) string {
	if list, ok := coerce.List(value); ok {
		if len(list) == 0 {
			return EmptyAnswer
		}
		parts := make([]string, 0, len(list))
		for _, item := range list {
			parts = append(parts, formatScalar(q, item))
		}
		return strings.Join(parts, ", ")
	}
	if !coerce.Filled(value) {
		return EmptyAnswer
	}
	return formatScalar(q, value)
}

func formatScalar(q schema.Question, value any) string {
	if label, ok := q.OptionLabel(value); ok {
		return clean(label)
	}
	return clean(coerce.String(value))
}

var strict = bluemonday.StrictPolicy()

// clean strips markup from schema text and answers restored from storage.
func clean(s string) string {
	if !strings.ContainsAny(s, "<>&") {
		return s
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}
