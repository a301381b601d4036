package template

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/goliatone/go-formengine/pkg/render"
)

//go:embed templates/*.tpl
var builtin embed.FS

// SummaryTemplate is the template HTMLRenderer executes.
const SummaryTemplate = "summary"

// HTMLRenderer renders a summary as an HTML fragment. Answers are escaped by
// pongo2's autoescaping.
type HTMLRenderer struct {
	engine *Engine
}

// NewHTMLRenderer builds a renderer over the embedded templates. Passing
// WithFS replaces them; the replacement must provide SummaryTemplate.
func NewHTMLRenderer(options ...Option) (*HTMLRenderer, error) {
	files, err := fs.Sub(builtin, "templates")
	if err != nil {
		return nil, fmt.Errorf("template: builtin templates: %w", err)
	}
	engine, err := NewEngine(append([]Option{WithFS(files)}, options...)...)
	if err != nil {
		return nil, err
	}
	return &HTMLRenderer{engine: engine}, nil
}

// Engine exposes the underlying engine so callers can register filters.
func (h *HTMLRenderer) Engine() *Engine { return h.engine }

func (h *HTMLRenderer) Name() string        { return "html" }
func (h *HTMLRenderer) ContentType() string { return "text/html; charset=utf-8" }

func (h *HTMLRenderer) Render(ctx context.Context, pages []render.PageSummary, options render.RenderOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := h.engine.RenderTemplate(SummaryTemplate, summaryView{Pages: pageViews(pages, options)})
	if err != nil {
		return nil, fmt.Errorf("render: html: %w", err)
	}
	return []byte(out), nil
}

// Register adds an HTMLRenderer with the embedded templates to reg.
func Register(reg *render.Registry) error {
	h, err := NewHTMLRenderer()
	if err != nil {
		return err
	}
	return reg.Register(h)
}

type summaryView struct {
	Pages []pageView `json:"pages"`
}

type pageView struct {
	Number   int           `json:"number"`
	Title    string        `json:"title"`
	Sections []sectionView `json:"sections"`
}

type sectionView struct {
	Title   string       `json:"title"`
	Answers []answerView `json:"answers"`
}

type answerView struct {
	Key    string   `json:"key"`
	Label  string   `json:"label"`
	Value  string   `json:"value"`
	Errors []string `json:"errors,omitempty"`
}

func pageViews(pages []render.PageSummary, options render.RenderOptions) []pageView {
	out := make([]pageView, 0, len(pages))
	for i, page := range pages {
		if len(page.Sections) == 0 && !options.IncludeEmptyPages {
			continue
		}
		pv := pageView{Number: i + 1, Title: page.Title, Sections: make([]sectionView, 0, len(page.Sections))}
		for _, section := range page.Sections {
			sv := sectionView{Title: section.Title, Answers: make([]answerView, 0, len(section.Answers))}
			for _, answer := range section.Answers {
				sv.Answers = append(sv.Answers, answerView{
					Key:    answer.Key,
					Label:  answer.Label,
					Value:  answer.Value,
					Errors: options.Errors[answer.Key],
				})
			}
			pv.Sections = append(pv.Sections, sv)
		}
		out = append(out, pv)
	}
	return out
}
