package render

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	json "github.com/goccy/go-json"
)

// Renderer turns a form summary into bytes.
type Renderer interface {
	Name() string
	ContentType() string
	Render(ctx context.Context, pages []PageSummary, options RenderOptions) ([]byte, error)
}

// TextRenderer lays the summary out as aligned label/value columns.
type TextRenderer struct{}

func (TextRenderer) Name() string        { return "text" }
func (TextRenderer) ContentType() string { return "text/plain; charset=utf-8" }

func (TextRenderer) Render(_ context.Context, pages []PageSummary, options RenderOptions) ([]byte, error) {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	for pi, page := range pages {
		if len(page.Sections) == 0 && !options.IncludeEmptyPages {
			continue
		}
		fmt.Fprintf(tw, "%d. %s\n", pi+1, page.Title)
		for _, section := range page.Sections {
			fmt.Fprintf(tw, "  %s\n", section.Title)
			for _, answer := range section.Answers {
				line := fmt.Sprintf("    %s\t%s", answer.Label, answer.Value)
				if msgs := options.Errors[answer.Key]; len(msgs) > 0 {
					line += "\t(" + strings.Join(msgs, "; ") + ")"
				}
				fmt.Fprintln(tw, line)
			}
		}
	}
	if err := tw.Flush(); err != nil {
		return nil, fmt.Errorf("render: text: %w", err)
	}
	return buf.Bytes(), nil
}

// JSONRenderer encodes the summary as indented JSON, attaching errors when
// present.
type JSONRenderer struct{}

func (JSONRenderer) Name() string        { return "json" }
func (JSONRenderer) ContentType() string { return "application/json" }

func (JSONRenderer) Render(_ context.Context, pages []PageSummary, options RenderOptions) ([]byte, error) {
	payload := struct {
		Pages  []PageSummary       `json:"pages"`
		Errors map[string][]string `json:"errors,omitempty"`
	}{Pages: pages, Errors: options.Errors}
	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render: json: %w", err)
	}
	return out, nil
}
