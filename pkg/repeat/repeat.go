// Package repeat instantiates repeated sections. A section with RepeatFor is
// a template: whenever the count field changes, every existing instance field
// is removed and count fresh instances are registered under
// "<key>_<index>". Answers of dropped instances are discarded.
package repeat

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/goliatone/go-formengine/pkg/compute"
	"github.com/goliatone/go-formengine/pkg/schema"
	"github.com/goliatone/go-formengine/pkg/store"
)

// ErrNotRepeating is returned when attaching a section without RepeatFor.
var ErrNotRepeating = errors.New("repeat: section has no repeatFor key")

// Manager owns the bindings between count fields and repeated sections.
type Manager struct {
	store    *store.Store
	graph    *compute.Graph
	logger   *slog.Logger
	bindings []*Binding
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New creates a manager registering instance fields in s and wiring their
// math into g.
func New(s *store.Store, g *compute.Graph, opts ...Option) *Manager {
	m := &Manager{store: s, graph: g, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Binding ties one repeated section to its count field.
type Binding struct {
	manager   *Manager
	section   schema.Section
	templates []schema.Question
	keys      map[string]struct{}
	count     int
	unsub     func()
	err       error
}

// Attach subscribes to the section's count field and builds instances for
// the count it currently holds.
func (m *Manager) Attach(section schema.Section) (*Binding, error) {
	if !section.Repeats() {
		return nil, fmt.Errorf("%w: %q", ErrNotRepeating, section.Title)
	}
	b := &Binding{
		manager: m,
		section: section,
		keys:    map[string]struct{}{},
	}
	flatten(section.Questions, func(q schema.Question) {
		if q.Key == "" {
			return
		}
		b.templates = append(b.templates, q)
		b.keys[q.Key] = struct{}{}
	})

	if err := b.sync(m.store.Value(section.RepeatFor.Key), true); err != nil {
		return nil, err
	}
	b.unsub = m.store.OnChange(section.RepeatFor.Key, func(_ string, value any) {
		if err := b.sync(value, false); err != nil {
			b.err = err
			m.logger.Error("repeat: rebuild failed", "section", section.Title, "error", err)
		}
	})
	m.bindings = append(m.bindings, b)
	return b, nil
}

// Bindings returns every attached section binding.
func (m *Manager) Bindings() []*Binding {
	out := make([]*Binding, len(m.bindings))
	copy(out, m.bindings)
	return out
}

// Close detaches every binding without removing instance fields.
func (m *Manager) Close() {
	for _, b := range m.bindings {
		b.Detach()
	}
	m.bindings = nil
}

// Section returns the bound section.
func (b *Binding) Section() schema.Section {
	return b.section
}

// Count returns the number of live instances.
func (b *Binding) Count() int {
	return b.count
}

// Err returns the last rebuild error raised from a change notification.
func (b *Binding) Err() error {
	return b.err
}

// Keys returns the instance keys of index, in template order.
func (b *Binding) Keys(index int) []string {
	out := make([]string, 0, len(b.templates))
	for _, q := range b.templates {
		out = append(out, schema.InstanceKey(q.Key, index))
	}
	return out
}

// IsTemplate reports whether key is a template key of the section.
func (b *Binding) IsTemplate(key string) bool {
	_, ok := b.keys[key]
	return ok
}

// Detach stops watching the count field.
func (b *Binding) Detach() {
	if b.unsub != nil {
		b.unsub()
		b.unsub = nil
	}
}

// Rebuild forces a teardown and rebuild for the current count.
func (b *Binding) Rebuild() error {
	return b.sync(b.manager.store.Value(b.section.RepeatFor.Key), true)
}

func (b *Binding) sync(value any, force bool) error {
	count, capped := schema.RawRepeatCount(value)
	if capped {
		b.manager.logger.Warn("repeat: count capped",
			"section", b.section.Title,
			"count", value,
			"max", schema.MaxRepeatInstances,
		)
	}
	if !force && count == b.count {
		return nil
	}
	removed := b.teardown()
	err := b.build(count)
	b.count = count
	if rerr := b.recomputeDependents(removed, count); rerr != nil {
		err = errors.Join(err, rerr)
	}
	if err != nil {
		return err
	}
	b.err = nil
	b.manager.logger.Debug("repeat: rebuilt section", "section", b.section.Title, "count", count)
	return nil
}

// teardown removes every instance field and returns the removed keys. Only
// the instance wires are dropped; derived fields outside the section keep
// their subscriptions on instance keys.
func (b *Binding) teardown() []string {
	s := b.manager.store
	var removed []string
	for _, key := range s.Keys() {
		for _, q := range b.templates {
			if _, ok := schema.ParseInstanceKey(q.Key, key); ok {
				b.manager.graph.Unwire(key)
				s.Remove(key)
				removed = append(removed, key)
				break
			}
		}
	}
	return removed
}

// recomputeDependents refreshes derived fields that read instance keys, so
// they stop reflecting discarded answers.
func (b *Binding) recomputeDependents(removed []string, count int) error {
	keys := slices.Clone(removed)
	for i := range count {
		keys = append(keys, b.Keys(i)...)
	}
	seen := map[string]struct{}{}
	var errs []error
	for _, key := range keys {
		for _, target := range b.manager.graph.Dependents(key) {
			if _, ok := seen[target]; ok {
				continue
			}
			seen[target] = struct{}{}
			if err := b.manager.graph.Recompute(target); err != nil {
				errs = append(errs, fmt.Errorf("repeat: recompute %q: %w", target, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (b *Binding) build(count int) error {
	s := b.manager.store
	for i := range count {
		for _, q := range b.templates {
			s.Register(schema.InstanceKey(q.Key, i), schema.InitialValue(q), q.Validators, !q.Disabled)
		}
	}

	var errs []error
	for i := range count {
		for _, q := range b.templates {
			if q.Math == nil {
				continue
			}
			target := schema.InstanceKey(q.Key, i)
			m := q.Math.Rewrite(func(dep string) string {
				if b.IsTemplate(dep) {
					return schema.InstanceKey(dep, i)
				}
				return dep
			})
			if err := b.manager.graph.Wire(target, m); err != nil {
				errs = append(errs, fmt.Errorf("repeat: wire %q: %w", target, err))
			}
		}
	}
	return errors.Join(errs...)
}

func flatten(qs []schema.Question, fn func(schema.Question)) {
	for _, q := range qs {
		fn(q)
		flatten(q.Children, fn)
	}
}
