package orchestrator

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/goliatone/go-formengine/pkg/schema"
	"github.com/goliatone/go-formengine/pkg/store"
	"github.com/goliatone/go-formengine/pkg/validation"
	"github.com/goliatone/go-formengine/pkg/visibility"
)

// ErrPageOutOfRange is returned when a page index does not exist.
var ErrPageOutOfRange = errors.New("orchestrator: page index out of range")

// Result is the outcome of a validation pass.
type Result struct {
	IsValid     bool     `json:"isValid"`
	InvalidKeys []string `json:"invalidKeys"`
}

// Option customises the orchestrator.
type Option func(*Orchestrator)

// WithPropagator shares an existing propagator so validation syncs the same
// verdicts the engine uses.
func WithPropagator(p *visibility.Propagator) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.prop = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Orchestrator validates pages against one store.
type Orchestrator struct {
	store  *store.Store
	prop   *visibility.Propagator
	logger *slog.Logger
}

// New constructs an orchestrator over s.
func New(s *store.Store, options ...Option) *Orchestrator {
	o := &Orchestrator{store: s, logger: slog.Default()}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(o)
	}
	if o.prop == nil {
		o.prop = visibility.NewPropagator(s, visibility.WithLogger(o.logger))
	}
	return o
}

// Validate checks the page at pageIndex. The last page validates every page,
// so a final submit cannot skip an earlier invalid step.
func (o *Orchestrator) Validate(pages []schema.Page, pageIndex int) (Result, error) {
	if pageIndex < 0 || pageIndex >= len(pages) {
		return Result{}, fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, pageIndex, len(pages))
	}
	if pageIndex == len(pages)-1 {
		return o.ValidatePages(pages, pages), nil
	}
	return o.ValidatePages(pages, pages[pageIndex:pageIndex+1]), nil
}

// ValidatePages syncs visibility across the whole form and validates the
// target pages. Invalid fields are marked touched.
func (o *Orchestrator) ValidatePages(form, target []schema.Page) Result {
	return o.run(form, target, true)
}

// CheckPage reports whether the page at pageIndex alone is valid without
// marking anything touched. Steppers use it to decide which steps are
// reachable.
func (o *Orchestrator) CheckPage(pages []schema.Page, pageIndex int) (Result, error) {
	if pageIndex < 0 || pageIndex >= len(pages) {
		return Result{}, fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, pageIndex, len(pages))
	}
	return o.run(pages, pages[pageIndex:pageIndex+1], false), nil
}

func (o *Orchestrator) run(form, target []schema.Page, mark bool) Result {
	o.prop.Pages(form)

	c := &collector{o: o, mark: mark, seen: map[string]struct{}{}}
	for _, page := range target {
		for _, section := range page.Sections {
			c.section(section)
		}
	}
	if len(c.invalid) > 0 {
		o.logger.Debug("orchestrator: validation failed", "invalid", c.invalid)
	}
	return Result{IsValid: len(c.invalid) == 0, InvalidKeys: c.keys()}
}

// Errors returns the messages of every key that currently fails its
// effective validators.
func (o *Orchestrator) Errors(keys []string) map[string][]string {
	out := make(map[string][]string, len(keys))
	for _, key := range keys {
		field, ok := o.store.Get(key)
		if !ok {
			continue
		}
		if msgs := validation.Messages(field.Errors()); len(msgs) > 0 {
			out[key] = msgs
		}
	}
	return out
}

type collector struct {
	o       *Orchestrator
	mark    bool
	seen    map[string]struct{}
	invalid []string
}

func (c *collector) keys() []string {
	if c.invalid == nil {
		return []string{}
	}
	return c.invalid
}

func (c *collector) section(section schema.Section) {
	if section.Questions == nil {
		return
	}
	if !c.o.prop.Evaluate(section.ConditionalOn) {
		return
	}
	if !section.Repeats() {
		for _, q := range section.Questions {
			c.question(q, nil)
		}
		return
	}
	count := schema.RepeatCount(c.o.store.Value(section.RepeatFor.Key))
	for i := range count {
		sc := visibility.NewScope(section, i)
		for _, q := range section.Questions {
			c.question(q, sc)
		}
	}
}

func (c *collector) question(q schema.Question, sc *visibility.Scope) {
	if !c.o.prop.Evaluate(sc.Condition(q.ConditionalOn)) {
		return
	}
	if q.Key != "" {
		c.check(sc.Key(q.Key))
	}
	for _, child := range q.Children {
		c.question(child, sc)
	}
}

func (c *collector) check(key string) {
	if _, dup := c.seen[key]; dup {
		return
	}
	c.seen[key] = struct{}{}

	field, ok := c.o.store.Get(key)
	if !ok || !field.Enabled {
		return
	}
	if field.Valid() {
		return
	}
	if c.mark {
		_ = c.o.store.MarkTouched(key)
	}
	c.invalid = append(c.invalid, key)
}
