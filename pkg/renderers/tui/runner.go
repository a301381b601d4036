package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/goliatone/go-formengine/internal/coerce"
	"github.com/goliatone/go-formengine/pkg/engine"
	"github.com/goliatone/go-formengine/pkg/navigation"
	"github.com/goliatone/go-formengine/pkg/render"
	"github.com/goliatone/go-formengine/pkg/schema"
	"github.com/goliatone/go-formengine/pkg/validation"
	"github.com/goliatone/go-formengine/pkg/widgets"
)

const defaultMaxAttempts = 3

// Runner walks a built form page by page in the terminal. Each visible
// question is prompted in schema order; visibility is re-read after every
// answer so conditional questions and repeated sections appear as soon as
// they apply. A page is only left once it validates.
type Runner struct {
	driver            PromptDriver
	outputFormat      OutputFormat
	submitTransformer SubmitTransformer
	theme             Theme
	hooks             []navigation.Hook
	maxAttempts       int
	widgets           *widgets.Registry
	logger            *slog.Logger
}

// New constructs a runner with defaults (survey driver, JSON output).
func New(options ...Option) (*Runner, error) {
	r := &Runner{
		outputFormat: OutputFormatJSON,
		maxAttempts:  defaultMaxAttempts,
		widgets:      widgets.NewRegistry(),
		logger:       slog.Default(),
	}

	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}

	if r.driver == nil {
		r.driver = NewSurveyDriver(nil)
	}
	switch r.outputFormat {
	case OutputFormatJSON, OutputFormatFormURLEncoded, OutputFormatPrettyText:
	default:
		return nil, fmt.Errorf("tui: unknown output format %q", r.outputFormat)
	}
	return r, nil
}

// ContentType reports the serialization format used by Run.
func (r *Runner) ContentType() string {
	switch r.outputFormat {
	case OutputFormatFormURLEncoded:
		return "application/x-www-form-urlencoded"
	case OutputFormatPrettyText:
		return "text/plain"
	default:
		return "application/json"
	}
}

// Run prompts every page of e and returns the submitted values serialized
// in the configured format.
func (r *Runner) Run(ctx context.Context, e *engine.Engine) ([]byte, error) {
	if ctx == nil {
		return nil, errors.New("tui: context is required")
	}
	if e == nil {
		return nil, engine.ErrNotBuilt
	}

	state := NewState()
	navOpts := []navigation.Option{navigation.WithLogger(r.logger)}
	for _, hook := range r.hooks {
		navOpts = append(navOpts, navigation.WithHook(hook))
	}
	nav := e.Navigator(navOpts...)
	pages := e.Pages()

	var only map[string]bool
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := nav.Current()
		if state.Attempt(page) > r.maxAttempts {
			return nil, fmt.Errorf("%w: page %d", ErrTooManyAttempts, page+1)
		}
		if only == nil {
			if err := r.info(ctx, pageHeading(pages, page, r.theme)); err != nil {
				return nil, err
			}
		}
		if err := r.promptPage(ctx, e, state, pages[page], only); err != nil {
			return nil, err
		}

		if nav.IsLast() {
			sub, err := nav.Submit(ctx)
			if err != nil {
				if !errors.Is(err, navigation.ErrHookFailed) {
					return nil, err
				}
				if err := r.hookFailed(ctx, e, state, err); err != nil {
					return nil, err
				}
				only = nil
				continue
			}
			if sub.Result.IsValid {
				return r.finish(ctx, e, sub.Values)
			}
			// the final page validates every page; go back to the first
			// one holding a failure
			target := firstPageWith(e, pages, sub.Result.InvalidKeys)
			if target != page {
				_ = nav.GoTo(target)
			}
			only, err = r.report(ctx, e, state, sub.Result.InvalidKeys)
			if err != nil {
				return nil, err
			}
			continue
		}

		step, err := nav.Next(ctx)
		if err != nil {
			if !errors.Is(err, navigation.ErrHookFailed) {
				return nil, err
			}
			if err := r.hookFailed(ctx, e, state, err); err != nil {
				return nil, err
			}
			only = nil
			continue
		}
		if !step.Moved {
			only, err = r.report(ctx, e, state, step.Result.InvalidKeys)
			if err != nil {
				return nil, err
			}
			continue
		}
		only = nil
	}
}

func (r *Runner) promptPage(ctx context.Context, e *engine.Engine, state *State, page schema.Page, only map[string]bool) error {
	for _, section := range page.Sections {
		if section.Questions == nil || !e.IsSectionVisible(section) {
			continue
		}
		if !section.Repeats() {
			if err := r.promptQuestions(ctx, e, state, section.Questions, only, func(q schema.Question) (string, string, bool) {
				return q.Key, displayLabel(q), e.IsVisible(q)
			}); err != nil {
				return err
			}
			continue
		}
		for i := range e.InstanceCount(section) {
			if err := r.promptQuestions(ctx, e, state, section.Questions, only, func(q schema.Question) (string, string, bool) {
				label := fmt.Sprintf("%s (%s %d)", displayLabel(q), section.Title, i+1)
				return schema.InstanceKey(q.Key, i), label, e.IsInstanceVisible(section, q, i)
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

type resolver func(q schema.Question) (key, label string, visible bool)

func (r *Runner) promptQuestions(ctx context.Context, e *engine.Engine, state *State, questions []schema.Question, only map[string]bool, resolve resolver) error {
	for _, q := range questions {
		if q.Key == "" {
			if err := r.promptQuestions(ctx, e, state, q.Children, only, resolve); err != nil {
				return err
			}
			continue
		}
		key, label, visible := resolve(q)
		if !visible {
			continue
		}
		if only == nil || only[key] {
			if err := r.promptField(ctx, e, state, q, key, label); err != nil {
				return err
			}
		}
		if err := r.promptQuestions(ctx, e, state, q.Children, only, resolve); err != nil {
			return err
		}
	}
	return nil
}

// promptField asks for one answer, re-asking while the field reports errors.
func (r *Runner) promptField(ctx context.Context, e *engine.Engine, state *State, q schema.Question, key, label string) error {
	if q.Derived() {
		return r.info(ctx, fmt.Sprintf("%s: %s", label, render.FormatAnswer(q, e.Value(key))))
	}
	if q.Disabled {
		return nil
	}

	for attempt := 1; ; attempt++ {
		value, err := r.ask(ctx, q, label, e.Value(key))
		if err != nil {
			return err
		}
		if err := e.SetValue(key, value); err != nil {
			return err
		}
		msgs := validation.Messages(e.FieldErrors(key))
		state.SetErrors(key, msgs)
		if len(msgs) == 0 || attempt >= r.maxAttempts {
			return nil
		}
		if err := r.fail(ctx, fmt.Sprintf("%s: %s", label, strings.Join(msgs, "; "))); err != nil {
			return err
		}
	}
}

func (r *Runner) ask(ctx context.Context, q schema.Question, label string, current any) (any, error) {
	widget := r.widgets.ResolveOr(q, widgets.WidgetInput)
	switch widget {
	case widgets.WidgetConfirm:
		if len(q.Options) != 2 {
			break
		}
		_, values := optionLists(q)
		yes, err := r.driver.Confirm(ctx, ConfirmConfig{
			Message: label,
			Default: coerce.Equal(current, values[0]),
			Help:    q.Help,
		})
		if err != nil {
			return nil, err
		}
		if yes {
			return values[0], nil
		}
		return values[1], nil

	case widgets.WidgetSelect:
		if len(q.Options) == 0 {
			break
		}
		labels, values := optionLists(q)
		idx, err := r.driver.Select(ctx, SelectConfig{
			Message:      label,
			Options:      labels,
			DefaultIndex: indexOfValue(values, current),
			Help:         q.Help,
		})
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(values) {
			return nil, nil
		}
		return values[idx], nil

	case widgets.WidgetMultiSelect:
		labels, values := optionLists(q)
		var defaults []int
		if list, ok := coerce.List(current); ok {
			for _, item := range list {
				if idx := indexOfValue(values, item); idx >= 0 {
					defaults = append(defaults, idx)
				}
			}
		}
		picked, err := r.driver.MultiSelect(ctx, SelectConfig{
			Message:  label,
			Options:  labels,
			Defaults: defaults,
			Help:     q.Help,
		})
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, len(picked))
		for _, idx := range picked {
			if idx >= 0 && idx < len(values) {
				out = append(out, values[idx])
			}
		}
		return out, nil

	case widgets.WidgetEditor:
		return r.driver.TextArea(ctx, TextAreaConfig{
			Message: label,
			Default: coerce.String(current),
			Help:    q.Help,
		})

	case widgets.WidgetNumber:
		raw, err := r.driver.Input(ctx, InputConfig{
			Kind:        InputNumber,
			Message:     label,
			Default:     coerce.String(current),
			Help:        q.Help,
			Placeholder: q.Placeholder,
		})
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(raw) == "" {
			return nil, nil
		}
		if f, ok := ParseNumber(raw); ok {
			return f, nil
		}
		// the math validator reports non-numeric input
		return raw, nil
	}

	cfg := InputConfig{
		Message:     label,
		Default:     coerce.String(current),
		Help:        q.Help,
		Placeholder: q.Placeholder,
	}
	if widget == widgets.WidgetPassword {
		cfg.Kind = InputPassword
	}
	return r.driver.Input(ctx, cfg)
}

// report shows the messages of every invalid key and returns the set to
// re-prompt.
func (r *Runner) report(ctx context.Context, e *engine.Engine, state *State, keys []string) (map[string]bool, error) {
	errs := e.Errors(keys)
	only := make(map[string]bool, len(keys))
	for _, key := range keys {
		only[key] = true
		state.SetErrors(key, errs[key])
		label := key
		if q, ok := e.Question(key); ok && q.Label != "" {
			label = q.Label
		}
		if err := r.fail(ctx, fmt.Sprintf("%s: %s", label, strings.Join(errs[key], "; "))); err != nil {
			return nil, err
		}
	}
	r.logger.Debug("tui: page invalid", "keys", keys)
	return only, nil
}

func (r *Runner) finish(ctx context.Context, e *engine.Engine, values map[string]any) ([]byte, error) {
	if r.submitTransformer != nil {
		var err error
		values, err = r.submitTransformer(values)
		if err != nil {
			return nil, fmt.Errorf("tui: submit transformer: %w", err)
		}
	}
	switch r.outputFormat {
	case OutputFormatFormURLEncoded:
		return []byte(flattenForm(values)), nil
	case OutputFormatPrettyText:
		return render.TextRenderer{}.Render(ctx, render.Summary(e), render.RenderOptions{})
	default:
		return json.Marshal(values)
	}
}

func (r *Runner) info(ctx context.Context, msg string) error {
	return r.driver.Info(ctx, r.theme.InfoPrefix+msg)
}

// hookFailed reports a rejected page hook. Field errors the hook returned
// are placed on their questions; the rest are shown as form messages.
func (r *Runner) hookFailed(ctx context.Context, e *engine.Engine, state *State, err error) error {
	var fe navigation.FieldErrors
	if !errors.As(err, &fe) {
		return r.fail(ctx, err.Error())
	}
	mapping := render.MapErrorPayload(e.Keys(), fe)
	var lines []string
	for _, key := range e.Keys() {
		msgs, ok := mapping.Fields[key]
		if !ok {
			continue
		}
		state.SetErrors(key, msgs)
		label := key
		if q, ok := e.Question(key); ok && q.Label != "" {
			label = q.Label
		}
		lines = append(lines, fmt.Sprintf("%s: %s", label, strings.Join(msgs, "; ")))
	}
	for _, msg := range render.MergeFormErrors(mapping.Form, lines...) {
		if err := r.fail(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) fail(ctx context.Context, msg string) error {
	return r.driver.Info(ctx, r.theme.ErrorPrefix+msg)
}

func pageHeading(pages []schema.Page, page int, theme Theme) string {
	return fmt.Sprintf("%s (%d/%d)%s", pages[page].Title, page+1, len(pages), theme.PageSuffix)
}

// firstPageWith returns the first page holding one of keys, or the last page.
func firstPageWith(e *engine.Engine, pages []schema.Page, keys []string) int {
	wanted := map[string]bool{}
	for _, key := range keys {
		if q, ok := e.Question(key); ok {
			wanted[q.Key] = true
		}
	}
	for pi, page := range pages {
		found := false
		for _, section := range page.Sections {
			walk(section.Questions, func(q schema.Question) {
				if wanted[q.Key] {
					found = true
				}
			})
		}
		if found {
			return pi
		}
	}
	return len(pages) - 1
}

func walk(qs []schema.Question, fn func(schema.Question)) {
	for _, q := range qs {
		fn(q)
		walk(q.Children, fn)
	}
}

func displayLabel(q schema.Question) string {
	if q.Label != "" {
		return q.Label
	}
	return q.Key
}

func optionLists(q schema.Question) ([]string, []any) {
	labels := make([]string, 0, len(q.Options))
	values := make([]any, 0, len(q.Options))
	for _, opt := range q.Options {
		label := opt.Label
		if label == "" {
			label = coerce.String(opt.Value)
		}
		labels = append(labels, label)
		values = append(values, opt.Value)
	}
	return labels, values
}

func indexOfValue(values []any, value any) int {
	return slices.IndexFunc(values, func(v any) bool { return coerce.Equal(v, value) })
}

func flattenForm(values map[string]any) string {
	flattened := url.Values{}
	for key, value := range values {
		if list, ok := coerce.List(value); ok {
			for _, item := range list {
				flattened.Add(key+"[]", coerce.String(item))
			}
			continue
		}
		flattened.Set(key, coerce.String(value))
	}
	return flattened.Encode()
}
