package engine

import (
	"log/slog"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formengine/pkg/visibility"
)

// Sanitizer cleans free-text answers before they reach the store.
// *bluemonday.Policy satisfies it.
type Sanitizer interface {
	Sanitize(string) string
}

// Option customises an Engine.
type Option func(*Engine)

// WithLogger sets the logger shared by every component of the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSanitizer replaces the text sanitizer. Pass nil to store text
// verbatim.
func WithSanitizer(s Sanitizer) Option {
	return func(e *Engine) {
		e.sanitizer = s
	}
}

// WithID pins the engine identifier, for example when restoring a session.
func WithID(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.id = id
		}
	}
}

// WithEvaluator replaces the condition evaluator.
func WithEvaluator(eval visibility.Evaluator) Option {
	return func(e *Engine) {
		if eval != nil {
			e.evaluator = eval
		}
	}
}

// WithMaxPasses bounds the number of visibility passes Refresh runs before
// giving up on reaching a stable state.
func WithMaxPasses(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxPasses = n
		}
	}
}

// WithMaxCascadeDepth bounds nested change dispatch inside the store.
func WithMaxCascadeDepth(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxDepth = n
		}
	}
}

func defaultSanitizer() Sanitizer {
	return bluemonday.StrictPolicy()
}
