// Package engine is the entry point of the form engine. New builds a live
// form from a schema: it registers every field, wires computed fields and
// repeated sections, and applies visibility. After that every edit made
// through SetValue settles the whole form before returning.
//
// An Engine manages one form instance and is not safe for concurrent use.
package engine

import (
	"errors"
	"fmt"
	"html"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/goliatone/go-formengine/internal/coerce"
	"github.com/goliatone/go-formengine/pkg/compute"
	"github.com/goliatone/go-formengine/pkg/navigation"
	"github.com/goliatone/go-formengine/pkg/orchestrator"
	"github.com/goliatone/go-formengine/pkg/repeat"
	"github.com/goliatone/go-formengine/pkg/schema"
	"github.com/goliatone/go-formengine/pkg/store"
	"github.com/goliatone/go-formengine/pkg/validation"
	"github.com/goliatone/go-formengine/pkg/visibility"
)

var (
	// ErrNotBuilt is returned when a method is called on a nil engine.
	ErrNotBuilt = errors.New("engine: form not built")
	// ErrDerivedField is returned when SetValue targets a computed field.
	ErrDerivedField = errors.New("engine: derived field cannot be set directly")
	// ErrNotList is returned when toggling a value on a scalar field.
	ErrNotList = errors.New("engine: field does not hold a list")
	// ErrUnsettled is returned when visibility keeps changing after the
	// configured number of passes.
	ErrUnsettled = errors.New("engine: visibility did not settle")
)

const defaultMaxPasses = 16

// Engine is a built form instance.
type Engine struct {
	id        string
	pages     []schema.Page
	questions map[string]schema.Question
	logger    *slog.Logger
	sanitizer Sanitizer
	evaluator visibility.Evaluator
	maxPasses int
	maxDepth  int

	store   *store.Store
	graph   *compute.Graph
	repeats *repeat.Manager
	prop    *visibility.Propagator
	orch    *orchestrator.Orchestrator
	bus     navigation.Bus

	nextChangeID int
	changeSubs   []changeSub
}

type changeSub struct {
	id int
	fn func(key string, value any)
}

// FromSections builds a single-page form from sections.
func FromSections(sections []schema.Section, opts ...Option) (*Engine, error) {
	return New([]schema.Page{{Sections: sections}}, opts...)
}

// New validates pages and builds the live form.
func New(pages []schema.Page, opts ...Option) (*Engine, error) {
	e := &Engine{
		id:        uuid.NewString(),
		pages:     pages,
		questions: map[string]schema.Question{},
		logger:    slog.Default(),
		sanitizer: defaultSanitizer(),
		evaluator: visibility.Default,
		maxPasses: defaultMaxPasses,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.logger = e.logger.With("form", e.id)

	if err := schema.Check(pages); err != nil {
		return nil, err
	}
	if err := checkMathCycles(pages); err != nil {
		return nil, err
	}

	storeOpts := []store.Option{store.WithLogger(e.logger)}
	if e.maxDepth > 0 {
		storeOpts = append(storeOpts, store.WithMaxDepth(e.maxDepth))
	}
	e.store = store.New(storeOpts...)
	e.prop = visibility.NewPropagator(e.store,
		visibility.WithEvaluator(e.evaluator),
		visibility.WithLogger(e.logger),
	)
	e.graph = compute.New(e.store,
		compute.WithLogger(e.logger),
		compute.WithHold(e.hidden),
	)
	e.repeats = repeat.New(e.store, e.graph, repeat.WithLogger(e.logger))
	e.orch = orchestrator.New(e.store,
		orchestrator.WithPropagator(e.prop),
		orchestrator.WithLogger(e.logger),
	)

	if err := e.build(); err != nil {
		return nil, err
	}
	if err := e.Refresh(); err != nil {
		e.logger.Warn("engine: initial refresh did not settle", "error", err)
	}
	return e, nil
}

func (e *Engine) build() error {
	var repeated []schema.Section
	for pi, page := range e.pages {
		for si, section := range page.Sections {
			if section.Questions == nil {
				e.logger.Warn("engine: skipping malformed section",
					"page", pi,
					"section", si,
					"title", section.Title,
				)
				continue
			}
			if section.Repeats() {
				repeated = append(repeated, section)
				forEachQuestion(section.Questions, func(q schema.Question) {
					if q.Key != "" {
						e.index(q)
					}
				})
				continue
			}
			forEachQuestion(section.Questions, func(q schema.Question) {
				if q.Key == "" {
					return
				}
				e.index(q)
				if !e.store.Has(q.Key) {
					e.store.Register(q.Key, schema.InitialValue(q), q.Validators, !q.Disabled)
				}
			})
		}
	}

	// count fields that no question declares still need a slot to watch
	for _, section := range repeated {
		if key := section.RepeatFor.Key; !e.store.Has(key) {
			e.store.Register(key, nil, nil, true)
		}
	}

	var wireErrs []error
	for _, key := range e.store.Keys() {
		q, ok := e.questions[key]
		if !ok || q.Math == nil {
			continue
		}
		if err := e.graph.Wire(key, *q.Math); err != nil {
			wireErrs = append(wireErrs, fmt.Errorf("engine: wire %q: %w", key, err))
		}
	}
	if err := errors.Join(wireErrs...); err != nil {
		return err
	}

	for _, section := range repeated {
		if _, err := e.repeats.Attach(section); err != nil {
			return fmt.Errorf("engine: attach %q: %w", section.Title, err)
		}
	}
	return nil
}

func (e *Engine) index(q schema.Question) {
	if _, exists := e.questions[q.Key]; !exists {
		e.questions[q.Key] = q
	}
}

// hidden reports whether the last visibility pass hid key.
func (e *Engine) hidden(key string) bool {
	visible, known := e.prop.Visible(key)
	return known && !visible
}

// Refresh applies visibility to the whole form until nothing changes.
// Values cleared by a pass are re-announced to their subscribers so computed
// fields and repeated sections follow, and revealed computed fields are
// recomputed.
func (e *Engine) Refresh() error {
	if e == nil {
		return ErrNotBuilt
	}
	var errs []error
	for range e.maxPasses {
		res := e.prop.Pages(e.pages)
		if !res.Changed() {
			return errors.Join(errs...)
		}
		for _, key := range res.Revealed {
			if e.graph.Wired(key) {
				if err := e.graph.Recompute(key); err != nil {
					errs = append(errs, err)
				}
			}
		}
		for _, key := range res.Cleared {
			if err := e.store.Notify(key); err != nil && !errors.Is(err, store.ErrUnknownField) {
				errs = append(errs, err)
			}
		}
	}
	e.logger.Warn("engine: visibility did not settle", "passes", e.maxPasses)
	return errors.Join(append(errs, ErrUnsettled)...)
}

// ID returns the engine identifier.
func (e *Engine) ID() string {
	if e == nil {
		return ""
	}
	return e.id
}

// Pages returns the schema the engine was built from.
func (e *Engine) Pages() []schema.Page {
	if e == nil {
		return nil
	}
	return e.pages
}

// PageCount returns the number of pages.
func (e *Engine) PageCount() int {
	if e == nil {
		return 0
	}
	return len(e.pages)
}

// Question resolves key, including repeated instance keys, to its schema
// question.
func (e *Engine) Question(key string) (schema.Question, bool) {
	if e == nil {
		return schema.Question{}, false
	}
	if q, ok := e.questions[key]; ok {
		return q, true
	}
	for _, b := range e.repeats.Bindings() {
		for templateKey := range e.templateKeys(b) {
			if _, ok := schema.ParseInstanceKey(templateKey, key); ok {
				return e.questions[templateKey], true
			}
		}
	}
	return schema.Question{}, false
}

func (e *Engine) templateKeys(b *repeat.Binding) map[string]struct{} {
	keys := map[string]struct{}{}
	forEachQuestion(b.Section().Questions, func(q schema.Question) {
		if q.Key != "" {
			keys[q.Key] = struct{}{}
		}
	})
	return keys
}

// SetValue records a user answer and settles the form. Derived fields are
// rejected. Numeric answers are clamped to the question's Min and Max, text
// is sanitised, and list questions always receive a list.
func (e *Engine) SetValue(key string, value any) error {
	if e == nil {
		return ErrNotBuilt
	}
	q, known := e.Question(key)
	if !known && !e.store.Has(key) {
		return fmt.Errorf("engine: set %q: %w", key, store.ErrUnknownField)
	}
	if q.Derived() {
		return fmt.Errorf("%w: %q", ErrDerivedField, key)
	}
	return e.write(key, e.normalize(q, value))
}

func (e *Engine) write(key string, value any) error {
	setErr := e.store.SetValue(key, value, store.SetOptions{})
	refreshErr := e.Refresh()
	if err := errors.Join(setErr, refreshErr); err != nil {
		return fmt.Errorf("engine: set %q: %w", key, err)
	}
	e.emitChange(key, e.store.Value(key))
	return nil
}

func (e *Engine) normalize(q schema.Question, value any) any {
	if q.Multiple() {
		if value == nil {
			return []any{}
		}
		if list, ok := coerce.List(value); ok {
			return slices.Clone(list)
		}
		return []any{e.sanitize(value)}
	}

	value = e.sanitize(value)
	if q.Type == schema.TypeNumber {
		if s, ok := value.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				value = f
			}
		}
	}
	return clamp(q, value)
}

func (e *Engine) sanitize(value any) any {
	s, ok := value.(string)
	if !ok || e.sanitizer == nil {
		return value
	}
	return html.UnescapeString(e.sanitizer.Sanitize(s))
}

// clamp pins numeric values into [Min, Max].
func clamp(q schema.Question, value any) any {
	if q.Min == nil && q.Max == nil {
		return value
	}
	if !coerce.Filled(value) {
		return value
	}
	f, ok := coerce.Number(value)
	if !ok {
		return value
	}
	switch {
	case q.Min != nil && f < *q.Min:
		return *q.Min
	case q.Max != nil && f > *q.Max:
		return *q.Max
	}
	return value
}

// ToggleCheckboxValue adds value to a list field, or removes it when already
// present.
func (e *Engine) ToggleCheckboxValue(key string, value any) error {
	if e == nil {
		return ErrNotBuilt
	}
	field, ok := e.store.Get(key)
	if !ok {
		return fmt.Errorf("engine: toggle %q: %w", key, store.ErrUnknownField)
	}
	q, _ := e.Question(key)
	current, isList := coerce.List(field.Value)
	if !isList {
		if field.Value != nil || !q.Multiple() {
			return fmt.Errorf("%w: %q", ErrNotList, key)
		}
	}
	next := make([]any, 0, len(current)+1)
	removed := false
	for _, item := range current {
		if coerce.Equal(item, value) {
			removed = true
			continue
		}
		next = append(next, item)
	}
	if !removed {
		next = append(next, value)
	}
	return e.write(key, next)
}

// GetRepeatArray enumerates [0, count).
func (e *Engine) GetRepeatArray(count int) []int {
	return schema.RepeatArray(count)
}

// InstanceCount returns how many instances a repeated section currently
// has.
func (e *Engine) InstanceCount(section schema.Section) int {
	if e == nil || !section.Repeats() {
		return 0
	}
	return schema.RepeatCount(e.store.Value(section.RepeatFor.Key))
}

// IsVisible settles the form and reports whether q is visible, taking its
// section and ancestors into account when q has a field.
func (e *Engine) IsVisible(q schema.Question) bool {
	if e == nil {
		return false
	}
	e.settle()
	if q.Key != "" {
		if visible, known := e.prop.Visible(q.Key); known {
			return visible
		}
	}
	return e.prop.Evaluate(q.ConditionalOn)
}

// IsInstanceVisible reports whether instance index of a template question
// in section is visible.
func (e *Engine) IsInstanceVisible(section schema.Section, q schema.Question, index int) bool {
	if e == nil {
		return false
	}
	e.settle()
	if visible, known := e.prop.Visible(schema.InstanceKey(q.Key, index)); known {
		return visible
	}
	return false
}

// IsSectionVisible settles the form and reports whether section's condition
// holds.
func (e *Engine) IsSectionVisible(section schema.Section) bool {
	if e == nil {
		return false
	}
	e.settle()
	return e.prop.Evaluate(section.ConditionalOn)
}

func (e *Engine) settle() {
	if err := e.Refresh(); err != nil {
		e.logger.Warn("engine: refresh failed", "error", err)
	}
}

// Validate checks the page at pageIndex; the last page checks every page.
// Invalid fields are marked touched.
func (e *Engine) Validate(pageIndex int) (orchestrator.Result, error) {
	if e == nil {
		return orchestrator.Result{}, ErrNotBuilt
	}
	if err := e.Refresh(); err != nil {
		e.logger.Warn("engine: refresh before validate failed", "error", err)
	}
	res, err := e.orch.Validate(e.pages, pageIndex)
	if err != nil {
		return res, err
	}
	e.logger.Debug("engine: validated page", "page", pageIndex, "valid", res.IsValid, "invalid", len(res.InvalidKeys))
	return res, nil
}

// CheckPage reports whether the page at pageIndex alone validates, without
// marking fields touched.
func (e *Engine) CheckPage(pageIndex int) (orchestrator.Result, error) {
	if e == nil {
		return orchestrator.Result{}, ErrNotBuilt
	}
	e.settle()
	return e.orch.CheckPage(e.pages, pageIndex)
}

// Errors returns the current messages for the given keys.
func (e *Engine) Errors(keys []string) map[string][]string {
	if e == nil {
		return nil
	}
	return e.orch.Errors(keys)
}

// FieldErrors returns the current failures of one field.
func (e *Engine) FieldErrors(key string) []validation.Error {
	if e == nil {
		return nil
	}
	field, ok := e.store.Get(key)
	if !ok {
		return nil
	}
	return field.Errors()
}

// Field returns a snapshot of a field's state.
func (e *Engine) Field(key string) (store.FieldState, bool) {
	if e == nil {
		return store.FieldState{}, false
	}
	return e.store.Get(key)
}

// Value returns the current value of key.
func (e *Engine) Value(key string) any {
	if e == nil {
		return nil
	}
	return e.store.Value(key)
}

// Values returns the values of enabled fields, which is what a submission
// carries.
func (e *Engine) Values() map[string]any {
	if e == nil {
		return nil
	}
	return e.store.EnabledValues()
}

// Keys returns every registered field key in registration order.
func (e *Engine) Keys() []string {
	if e == nil {
		return nil
	}
	return e.store.Keys()
}

// EmitPageVisited publishes a visited event.
func (e *Engine) EmitPageVisited(page int) {
	if e == nil {
		return
	}
	e.bus.Emit(navigation.Event{Kind: navigation.EventVisited, Page: page})
}

// EmitPageValidated publishes a validated event.
func (e *Engine) EmitPageValidated(page int) {
	if e == nil {
		return
	}
	e.bus.Emit(navigation.Event{Kind: navigation.EventValidated, Page: page})
}

// OnPageVisited subscribes to visited events.
func (e *Engine) OnPageVisited(fn func(page int)) func() {
	return e.bus.OnVisited(fn)
}

// OnPageValidated subscribes to validated events.
func (e *Engine) OnPageValidated(fn func(page int)) func() {
	return e.bus.OnValidated(fn)
}

// OnPageEvent subscribes to every page event.
func (e *Engine) OnPageEvent(fn func(navigation.Event)) func() {
	return e.bus.Subscribe(fn)
}

// OnFieldChange subscribes to user edits made through SetValue and
// ToggleCheckboxValue, after the form has settled.
func (e *Engine) OnFieldChange(fn func(key string, value any)) func() {
	e.nextChangeID++
	id := e.nextChangeID
	e.changeSubs = append(e.changeSubs, changeSub{id: id, fn: fn})
	return func() {
		e.changeSubs = slices.DeleteFunc(e.changeSubs, func(s changeSub) bool { return s.id == id })
	}
}

func (e *Engine) emitChange(key string, value any) {
	for _, sub := range slices.Clone(e.changeSubs) {
		sub.fn(key, value)
	}
}

// Navigator returns a navigator driving this engine.
func (e *Engine) Navigator(opts ...navigation.Option) *navigation.Navigator {
	return navigation.New(e, append([]navigation.Option{navigation.WithLogger(e.logger)}, opts...)...)
}

func forEachQuestion(qs []schema.Question, fn func(schema.Question)) {
	for _, q := range qs {
		fn(q)
		forEachQuestion(q.Children, fn)
	}
}

// checkMathCycles rejects circular math declarations before anything is
// wired. Template math is checked on instance zero.
func checkMathCycles(pages []schema.Page) error {
	deps := map[string][]string{}
	for _, page := range pages {
		for _, section := range page.Sections {
			templates := map[string]struct{}{}
			if section.Repeats() {
				forEachQuestion(section.Questions, func(q schema.Question) {
					templates[q.Key] = struct{}{}
				})
			}
			rename := func(key string) string {
				if _, ok := templates[key]; ok {
					return schema.InstanceKey(key, 0)
				}
				return key
			}
			forEachQuestion(section.Questions, func(q schema.Question) {
				if q.Math == nil || q.Key == "" {
					return
				}
				target := rename(q.Key)
				deps[target] = append(deps[target], q.Math.Rewrite(rename).DependsOn...)
			})
		}
	}
	return compute.CheckAcyclic(deps)
}
