package engine

import (
	"errors"
	"maps"
	"slices"

	"github.com/goliatone/go-formengine/pkg/store"
)

// Snapshot returns the answers a user could type back in: the values of
// enabled fields that are not derived. Empty answers are left out.
func (e *Engine) Snapshot() map[string]any {
	if e == nil {
		return nil
	}
	out := map[string]any{}
	for key, value := range e.store.EnabledValues() {
		if value == nil {
			continue
		}
		if q, ok := e.Question(key); ok && q.Derived() {
			continue
		}
		out[key] = value
	}
	return out
}

// Restore replays answers through SetValue. Answers are applied in rounds:
// a round only writes keys that currently exist and are enabled, so repeat
// counts and controlling answers land before the instance and conditional
// fields that depend on them. It returns the keys that could not be placed.
func (e *Engine) Restore(answers map[string]any) ([]string, error) {
	if e == nil {
		return nil, ErrNotBuilt
	}
	pending := slices.Sorted(maps.Keys(answers))
	var errs []error
	for len(pending) > 0 {
		var next []string
		for _, key := range pending {
			field, ok := e.store.Get(key)
			if !ok || !field.Enabled {
				next = append(next, key)
				continue
			}
			err := e.SetValue(key, answers[key])
			switch {
			case errors.Is(err, ErrDerivedField), errors.Is(err, store.ErrUnknownField):
				next = append(next, key)
			case err != nil:
				errs = append(errs, err)
			}
		}
		if len(next) == len(pending) {
			break
		}
		pending = next
	}
	if len(pending) > 0 {
		e.logger.Debug("engine: restore skipped answers", "keys", pending)
	}
	return pending, errors.Join(errs...)
}
