package visibility

import (
	"log/slog"

	"github.com/goliatone/go-formengine/internal/coerce"
	"github.com/goliatone/go-formengine/pkg/schema"
	"github.com/goliatone/go-formengine/pkg/store"
)

// Result lists the fields a pass changed. Cleared fields were emptied with a
// silent write, so their subscribers have not seen the change yet. Revealed
// fields went from disabled to enabled.
type Result struct {
	Cleared  []string
	Revealed []string
}

// Changed reports whether the pass had any effect.
func (r Result) Changed() bool {
	return len(r.Cleared) > 0 || len(r.Revealed) > 0
}

// Propagator applies visibility verdicts to a store.
//
// A pass first collects a verdict per field key and then commits them. A key
// that appears in several places (the same question reused by two sections)
// is visible when any occurrence is visible.
type Propagator struct {
	store    *store.Store
	eval     Evaluator
	logger   *slog.Logger
	verdicts map[string]bool
}

// Option configures a Propagator.
type Option func(*Propagator)

// WithEvaluator replaces the condition evaluator.
func WithEvaluator(eval Evaluator) Option {
	return func(p *Propagator) {
		if eval != nil {
			p.eval = eval
		}
	}
}

// WithLogger sets the logger for skipped sections.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Propagator) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPropagator binds a propagator to s.
func NewPropagator(s *store.Store, opts ...Option) *Propagator {
	p := &Propagator{
		store:    s,
		eval:     Default,
		logger:   slog.Default(),
		verdicts: map[string]bool{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Evaluate runs the configured evaluator against the store.
func (p *Propagator) Evaluate(cond schema.Condition) bool {
	if cond == nil {
		return true
	}
	return p.eval.Eval(cond, p.store)
}

// Apply computes the visibility of q under parentVisible, applies it to q's
// field and recurses into its children. It returns q's own effective
// visibility.
func (p *Propagator) Apply(q schema.Question, parentVisible bool) bool {
	pl := newPlan()
	visible := p.collectQuestion(pl, q, nil, parentVisible)
	p.commit(pl)
	return visible
}

// ApplyInstance is Apply for instance index of a template question belonging
// to the repeated section. Template keys referenced by q's condition resolve
// to the same instance.
func (p *Propagator) ApplyInstance(section schema.Section, q schema.Question, index int, parentVisible bool) bool {
	pl := newPlan()
	visible := p.collectQuestion(pl, q, NewScope(section, index), parentVisible)
	p.commit(pl)
	return visible
}

// Section evaluates the section condition and applies it to every question of
// the section, including repeated instances. A hidden section hides all of
// its fields regardless of their own conditions.
func (p *Propagator) Section(section schema.Section) bool {
	pl := newPlan()
	visible := p.collectSection(pl, section)
	p.commit(pl)
	return visible
}

// Pages runs a full pass over the form.
func (p *Propagator) Pages(pages []schema.Page) Result {
	pl := newPlan()
	for _, page := range pages {
		for _, section := range page.Sections {
			p.collectSection(pl, section)
		}
	}
	p.verdicts = make(map[string]bool, len(pl.order))
	for _, key := range pl.order {
		p.verdicts[key] = pl.entries[key].visible
	}
	return p.commit(pl)
}

// Visible returns the verdict recorded for key by the last Pages pass.
func (p *Propagator) Visible(key string) (visible, known bool) {
	visible, known = p.verdicts[key]
	return visible, known
}

type entry struct {
	question schema.Question
	visible  bool
}

type plan struct {
	order   []string
	entries map[string]*entry
}

func newPlan() *plan {
	return &plan{entries: map[string]*entry{}}
}

func (pl *plan) add(key string, q schema.Question, visible bool) {
	if existing, ok := pl.entries[key]; ok {
		if visible && !existing.visible {
			existing.question = q
			existing.visible = true
		}
		return
	}
	pl.order = append(pl.order, key)
	pl.entries[key] = &entry{question: q, visible: visible}
}

// Scope resolves template keys of a repeated section to one instance. A nil
// Scope leaves keys untouched.
type Scope struct {
	index     int
	templates map[string]struct{}
}

// NewScope returns the scope of instance index of section.
func NewScope(section schema.Section, index int) *Scope {
	sc := &Scope{index: index, templates: map[string]struct{}{}}
	var visit func([]schema.Question)
	visit = func(qs []schema.Question) {
		for _, q := range qs {
			if q.Key != "" {
				sc.templates[q.Key] = struct{}{}
			}
			visit(q.Children)
		}
	}
	visit(section.Questions)
	return sc
}

// Index returns the instance index.
func (sc *Scope) Index() int {
	if sc == nil {
		return -1
	}
	return sc.index
}

// Key maps a template key to its instance key; other keys pass through.
func (sc *Scope) Key(key string) string {
	if sc == nil {
		return key
	}
	if _, ok := sc.templates[key]; ok {
		return schema.InstanceKey(key, sc.index)
	}
	return key
}

// Condition rewrites the template keys referenced by cond.
func (sc *Scope) Condition(cond schema.Condition) schema.Condition {
	if sc == nil || cond == nil {
		return cond
	}
	return schema.RewriteKeys(cond, sc.Key)
}

func (p *Propagator) collectSection(pl *plan, section schema.Section) bool {
	if section.Questions == nil {
		p.logger.Debug("visibility: skipping malformed section", "section", section.Title)
		return false
	}
	visible := p.Evaluate(section.ConditionalOn)
	if !section.Repeats() {
		for _, q := range section.Questions {
			p.collectQuestion(pl, q, nil, visible)
		}
		return visible
	}
	count := schema.RepeatCount(p.store.Value(section.RepeatFor.Key))
	for i := range count {
		sc := NewScope(section, i)
		for _, q := range section.Questions {
			p.collectQuestion(pl, q, sc, visible)
		}
	}
	return visible
}

func (p *Propagator) collectQuestion(pl *plan, q schema.Question, sc *Scope, parentVisible bool) bool {
	visible := parentVisible && p.Evaluate(sc.Condition(q.ConditionalOn))
	if q.Key != "" {
		pl.add(sc.Key(q.Key), q, visible)
	}
	for _, child := range q.Children {
		p.collectQuestion(pl, child, sc, visible)
	}
	return visible
}

func (p *Propagator) commit(pl *plan) Result {
	var res Result
	for _, key := range pl.order {
		e := pl.entries[key]
		field, ok := p.store.Get(key)
		if !ok {
			continue
		}
		if e.visible {
			enabled := !e.question.Disabled
			changed, _ := p.store.SetEnabled(key, enabled)
			if changed && enabled {
				res.Revealed = append(res.Revealed, key)
			}
			continue
		}
		_, _ = p.store.SetEnabled(key, false)
		if isEmpty(field.Value, e.question) {
			continue
		}
		_ = p.store.SetValue(key, schema.EmptyValue(e.question), store.SetOptions{Silent: true})
		res.Cleared = append(res.Cleared, key)
	}
	return res
}

// isEmpty reports whether value already equals the cleared state of q.
func isEmpty(value any, q schema.Question) bool {
	if q.Multiple() {
		list, ok := coerce.List(value)
		return ok && len(list) == 0
	}
	return value == nil
}
