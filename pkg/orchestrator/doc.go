// Package orchestrator validates pages of a built form. It walks the visible
// questions of the target pages, expands repeated sections into their
// instance keys, and collects the fields that fail their effective
// validators. Hidden and disabled fields never block a page.
package orchestrator
