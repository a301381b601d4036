// Package template renders form summaries through pongo2 templates. The
// built-in HTMLRenderer ships an embedded summary template and plugs into a
// render.Registry next to the text and json renderers; callers can replace
// the template set to restyle the output.
package template
