// Package widgets chooses how a question is presented. A widget is a name
// such as "select" or "editor" that a front end maps onto its own control.
package widgets

import (
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-formengine/pkg/schema"
)

// Built-in widget identifiers exposed by the registry.
const (
	WidgetInput       = "input"
	WidgetPassword    = "password"
	WidgetNumber      = "number"
	WidgetEditor      = "editor"
	WidgetSelect      = "select"
	WidgetMultiSelect = "multi-select"
	// WidgetConfirm renders a two option question as a yes/no prompt. It is
	// only chosen through an explicit hint.
	WidgetConfirm = "confirm"
)

// Matcher decides whether a widget should handle the supplied question.
type Matcher func(q schema.Question) bool

type rule struct {
	name     string
	priority int
	match    Matcher
	order    int
}

// Registry selects widgets for questions based on explicit hints or
// registered matchers. Higher priority wins; ties fall back to registration
// order. An empty registry never resolves a widget.
type Registry struct {
	mu    sync.RWMutex
	rules []rule
}

// NewRegistry constructs a registry with the built-in widget matchers
// registered.
func NewRegistry() *Registry {
	reg := &Registry{}
	reg.registerBuiltins()
	return reg
}

// Register adds a widget matcher with the provided name and priority. Higher
// priority values take precedence. The latest registration of a name does
// not replace earlier ones; priority decides.
func (r *Registry) Register(name string, priority int, matcher Matcher) {
	if r == nil || matcher == nil {
		return
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules = append(r.rules, rule{
		name:     trimmed,
		priority: priority,
		match:    matcher,
		order:    len(r.rules),
	})
}

// Resolve returns the widget name for q. An explicit Widget hint on the
// question is honoured before matcher evaluation.
func (r *Registry) Resolve(q schema.Question) (string, bool) {
	if explicit := strings.TrimSpace(q.Widget); explicit != "" {
		return explicit, true
	}
	if r == nil {
		return "", false
	}
	r.mu.RLock()
	if len(r.rules) == 0 {
		r.mu.RUnlock()
		return "", false
	}
	rules := append([]rule(nil), r.rules...)
	r.mu.RUnlock()
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].priority == rules[j].priority {
			return rules[i].order < rules[j].order
		}
		return rules[i].priority > rules[j].priority
	})
	for _, entry := range rules {
		if entry.match(q) {
			return entry.name, true
		}
	}
	return "", false
}

// ResolveOr is Resolve with a fallback name.
func (r *Registry) ResolveOr(q schema.Question, fallback string) string {
	if name, ok := r.Resolve(q); ok {
		return name
	}
	return fallback
}

func (r *Registry) registerBuiltins() {
	r.Register(WidgetMultiSelect, 80, func(q schema.Question) bool {
		return q.Multiple()
	})

	r.Register(WidgetSelect, 70, func(q schema.Question) bool {
		if q.Type != schema.TypeSelect && q.Type != schema.TypeRadio {
			return false
		}
		return len(q.Options) > 0
	})

	r.Register(WidgetEditor, 60, func(q schema.Question) bool {
		return q.Type == schema.TypeTextarea
	})

	r.Register(WidgetNumber, 50, func(q schema.Question) bool {
		return q.Type == schema.TypeNumber
	})

	r.Register(WidgetPassword, 40, func(q schema.Question) bool {
		return strings.EqualFold(strings.TrimSpace(q.InputType), "password")
	})
}
