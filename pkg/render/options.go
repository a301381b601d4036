package render

// RenderOptions carries per-call data for renderers.
type RenderOptions struct {
	// Errors attaches validation messages to answers by field key.
	Errors map[string][]string
	// IncludeEmptyPages keeps pages that have no visible answers, such as a
	// confirmation page.
	IncludeEmptyPages bool
}
