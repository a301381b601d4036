// Package store holds the mutable state of one form instance: a flat map from
// field key to FieldState plus per-key change subscribers.
//
// A Store is not safe for concurrent use. The engine owns exactly one store
// and every edit runs to completion, including the cascade of subscribers it
// triggers, before the next edit starts.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/goliatone/go-formengine/pkg/schema"
	"github.com/goliatone/go-formengine/pkg/validation"
)

var (
	// ErrUnknownField is returned when an operation names a key that is not
	// registered.
	ErrUnknownField = errors.New("store: unknown field")
	// ErrCascadeTooDeep is returned by the outermost SetValue or Notify when
	// subscribers kept writing past the configured depth.
	ErrCascadeTooDeep = errors.New("store: change cascade too deep")
)

const defaultMaxDepth = 64

// FieldState is a snapshot of one field. Declared holds the validators
// registered for the field; the effective set returned by Validators depends
// on whether the field is enabled.
type FieldState struct {
	Key      string
	Value    any
	Enabled  bool
	Declared []schema.ValidationRule
	Touched  bool
	Dirty    bool
}

// Validators returns the rules currently attached to the field. Disabled
// fields carry none.
func (f FieldState) Validators() []schema.ValidationRule {
	if !f.Enabled {
		return nil
	}
	return f.Declared
}

// Errors runs the effective validators against the current value.
func (f FieldState) Errors() []validation.Error {
	return validation.Run(f.Validators(), f.Value)
}

// Valid reports whether the field passes its effective validators. Disabled
// fields are always valid.
func (f FieldState) Valid() bool {
	return validation.Valid(f.Validators(), f.Value)
}

// Listener receives the key and new value after a non-silent write.
type Listener func(key string, value any)

// SetOptions tunes a single write.
type SetOptions struct {
	// Silent skips subscriber dispatch.
	Silent bool
	// Pristine leaves the dirty flag untouched. Programmatic writes such as
	// computed values use it.
	Pristine bool
}

type subscription struct {
	id int
	fn Listener
}

// Store is the field registry.
type Store struct {
	fields   map[string]*FieldState
	order    []string
	subs     map[string][]subscription
	nextID   int
	depth    int
	maxDepth int
	aborted  bool
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used to report aborted cascades.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxDepth bounds how deeply subscriber dispatch may nest.
func WithMaxDepth(depth int) Option {
	return func(s *Store) {
		if depth > 0 {
			s.maxDepth = depth
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		fields:   make(map[string]*FieldState),
		subs:     make(map[string][]subscription),
		maxDepth: defaultMaxDepth,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Register creates or replaces the field under key. Existing subscribers of
// key are kept, so watchers may subscribe before a field exists.
func (s *Store) Register(key string, initial any, validators []schema.ValidationRule, enabled bool) {
	if _, exists := s.fields[key]; !exists {
		s.order = append(s.order, key)
	}
	s.fields[key] = &FieldState{
		Key:      key,
		Value:    initial,
		Enabled:  enabled,
		Declared: slices.Clone(validators),
	}
}

// Has reports whether key is registered.
func (s *Store) Has(key string) bool {
	_, ok := s.fields[key]
	return ok
}

// Get returns a copy of the field state.
func (s *Store) Get(key string) (FieldState, bool) {
	field, ok := s.fields[key]
	if !ok {
		return FieldState{}, false
	}
	return *field, true
}

// Value returns the value of key, or nil when the key is absent.
func (s *Store) Value(key string) any {
	if field, ok := s.fields[key]; ok {
		return field.Value
	}
	return nil
}

// Lookup returns the value of key and whether the key exists.
func (s *Store) Lookup(key string) (any, bool) {
	field, ok := s.fields[key]
	if !ok {
		return nil, false
	}
	return field.Value, true
}

// SetValue writes value to key. Unless opts.Silent is set, every subscriber
// of key runs synchronously in subscription order before SetValue returns.
func (s *Store) SetValue(key string, value any, opts SetOptions) error {
	field, ok := s.fields[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	field.Value = value
	if !opts.Pristine && !opts.Silent {
		field.Dirty = true
	}
	if opts.Silent {
		return nil
	}
	return s.dispatch(key, value)
}

// Notify re-dispatches the current value of key to its subscribers.
func (s *Store) Notify(key string) error {
	field, ok := s.fields[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	return s.dispatch(key, field.Value)
}

// SetEnabled toggles whether the field participates in validation and
// submission. It reports whether the flag changed.
func (s *Store) SetEnabled(key string, enabled bool) (bool, error) {
	field, ok := s.fields[key]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	if field.Enabled == enabled {
		return false, nil
	}
	field.Enabled = enabled
	return true, nil
}

// SetValidators replaces the declared rule set of key.
func (s *Store) SetValidators(key string, validators []schema.ValidationRule) error {
	field, ok := s.fields[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	field.Declared = slices.Clone(validators)
	return nil
}

// MarkTouched flags key so a UI can surface its errors.
func (s *Store) MarkTouched(key string) error {
	field, ok := s.fields[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	field.Touched = true
	return nil
}

// Remove deletes key. Subscribers of key stay attached, like those made
// before Register, and see writes again once the key is registered anew. It
// reports whether the key existed.
func (s *Store) Remove(key string) bool {
	if _, ok := s.fields[key]; !ok {
		return false
	}
	delete(s.fields, key)
	s.order = slices.DeleteFunc(s.order, func(k string) bool { return k == key })
	return true
}

// OnChange subscribes fn to non-silent writes of key. The returned function
// unsubscribes; calling it more than once is harmless.
func (s *Store) OnChange(key string, fn Listener) func() {
	s.nextID++
	id := s.nextID
	s.subs[key] = append(s.subs[key], subscription{id: id, fn: fn})
	return func() {
		subs := s.subs[key]
		s.subs[key] = slices.DeleteFunc(subs, func(sub subscription) bool { return sub.id == id })
		if len(s.subs[key]) == 0 {
			delete(s.subs, key)
		}
	}
}

// Subscribers reports how many listeners are attached to key.
func (s *Store) Subscribers(key string) int {
	return len(s.subs[key])
}

// Keys returns registered keys in registration order.
func (s *Store) Keys() []string {
	return slices.Clone(s.order)
}

// Len returns the number of registered fields.
func (s *Store) Len() int {
	return len(s.fields)
}

// Values returns a copy of every field value keyed by field key.
func (s *Store) Values() map[string]any {
	out := make(map[string]any, len(s.fields))
	for key, field := range s.fields {
		out[key] = field.Value
	}
	return out
}

// EnabledValues returns the values of enabled fields only, which is what a
// submission carries.
func (s *Store) EnabledValues() map[string]any {
	out := make(map[string]any, len(s.fields))
	for key, field := range s.fields {
		if field.Enabled {
			out[key] = field.Value
		}
	}
	return out
}

func (s *Store) dispatch(key string, value any) error {
	if s.depth >= s.maxDepth {
		if !s.aborted {
			s.logger.Error("store: aborting change cascade", "key", key, "depth", s.depth)
		}
		s.aborted = true
		return fmt.Errorf("%w: at %q", ErrCascadeTooDeep, key)
	}

	subs := slices.Clone(s.subs[key])
	s.depth++
	for _, sub := range subs {
		if s.aborted {
			break
		}
		if !s.subscribed(key, sub.id) {
			continue
		}
		sub.fn(key, value)
	}
	s.depth--

	if s.depth == 0 && s.aborted {
		s.aborted = false
		return fmt.Errorf("%w: at %q", ErrCascadeTooDeep, key)
	}
	return nil
}

func (s *Store) subscribed(key string, id int) bool {
	for _, sub := range s.subs[key] {
		if sub.id == id {
			return true
		}
	}
	return false
}
