// Package schema defines the inert form schema consumed by the engine: pages
// made of sections made of questions, plus the conditional and math
// expressions attached to them. Nothing in this package holds state or
// reacts to edits; pkg/engine wires these declarations into a live field
// store.
//
// Conditions are a closed sum type. A condition is either a *Leaf comparing
// one field against a value, or a *Group combining nested conditions with
// all/any/not. Operators outside the fixed set are rejected by Check rather
// than interpreted loosely.
//
// Field keys form a flat namespace. Questions outside repeated sections use
// their key verbatim; questions inside a section with RepeatFor are templates
// whose instances live under InstanceKey(key, index).
package schema
