// Package formengine is the top-level facade of the form engine. It re-exports
// the types most callers need and wires the schema loader to the engine so a
// form can be built from a file in one call.
package formengine

import (
	"fmt"
	"io/fs"

	"github.com/goliatone/go-formengine/pkg/engine"
	"github.com/goliatone/go-formengine/pkg/orchestrator"
	"github.com/goliatone/go-formengine/pkg/schema"
	"github.com/goliatone/go-formengine/pkg/schema/loader"
)

// Engine is a built form instance.
type Engine = engine.Engine

// Option customises an Engine.
type Option = engine.Option

// Page, Section and Question are the schema building blocks.
type (
	Page      = schema.Page
	Section   = schema.Section
	Question  = schema.Question
	Condition = schema.Condition
)

// ValidationResult is returned by Engine.Validate.
type ValidationResult = orchestrator.Result

// Form is a schema document decoded by Load.
type Form = loader.Form

// Build validates pages and returns a live engine. It is the buildForm entry
// point.
func Build(pages []Page, opts ...Option) (*Engine, error) {
	return engine.New(pages, opts...)
}

// BuildSections builds a single page form from sections.
func BuildSections(sections []Section, opts ...Option) (*Engine, error) {
	return engine.FromSections(sections, opts...)
}

// Load reads the schema document name from fsys and builds it.
func Load(fsys fs.FS, name string, opts ...Option) (*Engine, Form, error) {
	form, err := loader.LoadFile(fsys, name)
	if err != nil {
		return nil, Form{}, err
	}
	e, err := engine.New(form.Pages, opts...)
	if err != nil {
		return nil, form, fmt.Errorf("formengine: build %s: %w", form.ID, err)
	}
	return e, form, nil
}

// WithLogger re-exports engine.WithLogger.
var WithLogger = engine.WithLogger

// WithSanitizer re-exports engine.WithSanitizer.
var WithSanitizer = engine.WithSanitizer
