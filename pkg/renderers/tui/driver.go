package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// InputKind tells the driver how to read and check a single-line answer.
type InputKind int

const (
	InputText InputKind = iota
	InputNumber
	InputPassword
)

// InputConfig configures a single-line prompt.
type InputConfig struct {
	Kind        InputKind
	Message     string
	Default     string
	Help        string
	Placeholder string
}

// ConfirmConfig configures a yes/no prompt.
type ConfirmConfig struct {
	Message string
	Default bool
	Help    string
}

// SelectConfig configures a single or multi-select prompt. PageSize zero
// lets the driver size the list to the options.
type SelectConfig struct {
	Message      string
	Options      []string
	DefaultIndex int
	Defaults     []int
	Help         string
	PageSize     int
}

// TextAreaConfig configures a multi-line prompt.
type TextAreaConfig struct {
	Message string
	Default string
	Help    string
}

// PromptDriver is the terminal seen by the runner. Answers come back as
// option indices or raw text; the runner turns them into field values.
type PromptDriver interface {
	Input(ctx context.Context, cfg InputConfig) (string, error)
	Confirm(ctx context.Context, cfg ConfirmConfig) (bool, error)
	Select(ctx context.Context, cfg SelectConfig) (int, error)
	MultiSelect(ctx context.Context, cfg SelectConfig) ([]int, error)
	TextArea(ctx context.Context, cfg TextAreaConfig) (string, error)
	Info(ctx context.Context, msg string) error
}

const (
	minPageSize = 7
	maxPageSize = 15
)

type surveyDriver struct {
	out io.Writer
}

// NewSurveyDriver returns the interactive driver backed by survey. Info
// messages go to out, or stdout when out is nil.
func NewSurveyDriver(out io.Writer) PromptDriver {
	if out == nil {
		out = os.Stdout
	}
	return &surveyDriver{out: out}
}

func (d *surveyDriver) Input(ctx context.Context, cfg InputConfig) (string, error) {
	var (
		answer string
		prompt survey.Prompt
		opts   []survey.AskOpt
	)
	switch cfg.Kind {
	case InputPassword:
		prompt = &survey.Password{Message: cfg.Message, Help: cfg.Help}
	case InputNumber:
		prompt = &survey.Input{Message: cfg.Message, Help: cfg.Help, Default: cfg.Default}
		opts = append(opts, survey.WithValidator(numberAnswer))
	default:
		prompt = &survey.Input{Message: cfg.Message, Help: withPlaceholder(cfg.Help, cfg.Placeholder), Default: cfg.Default}
	}
	if err := ask(ctx, prompt, &answer, opts...); err != nil {
		return "", err
	}
	return answer, nil
}

func (d *surveyDriver) Confirm(ctx context.Context, cfg ConfirmConfig) (bool, error) {
	var yes bool
	err := ask(ctx, &survey.Confirm{Message: cfg.Message, Help: cfg.Help, Default: cfg.Default}, &yes)
	return yes, err
}

func (d *surveyDriver) Select(ctx context.Context, cfg SelectConfig) (int, error) {
	prompt := &survey.Select{
		Message:  cfg.Message,
		Options:  cfg.Options,
		Help:     cfg.Help,
		PageSize: pageSize(cfg),
	}
	if cfg.DefaultIndex >= 0 && cfg.DefaultIndex < len(cfg.Options) {
		prompt.Default = cfg.Options[cfg.DefaultIndex]
	}
	// survey.Select writes the chosen index into an int target
	idx := -1
	if err := ask(ctx, prompt, &idx); err != nil {
		return -1, err
	}
	return idx, nil
}

func (d *surveyDriver) MultiSelect(ctx context.Context, cfg SelectConfig) ([]int, error) {
	prompt := &survey.MultiSelect{
		Message:  cfg.Message,
		Options:  cfg.Options,
		Help:     cfg.Help,
		PageSize: pageSize(cfg),
	}
	if defaults := validIndices(cfg.Defaults, len(cfg.Options)); len(defaults) > 0 {
		prompt.Default = defaults
	}
	var picked []int
	if err := ask(ctx, prompt, &picked); err != nil {
		return nil, err
	}
	slices.Sort(picked)
	return picked, nil
}

func (d *surveyDriver) TextArea(ctx context.Context, cfg TextAreaConfig) (string, error) {
	var text string
	err := ask(ctx, &survey.Multiline{Message: cfg.Message, Help: cfg.Help, Default: cfg.Default}, &text)
	return text, err
}

func (d *surveyDriver) Info(ctx context.Context, msg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(d.out, msg)
	return err
}

// ask runs one survey prompt unless ctx is already done. Ctrl-C surfaces as
// ErrAborted.
func ask(ctx context.Context, prompt survey.Prompt, target any, opts ...survey.AskOpt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := survey.AskOne(prompt, target, opts...)
	if errors.Is(err, terminal.InterruptErr) {
		return ErrAborted
	}
	return err
}

// numberAnswer accepts blank input (the field may be optional) or anything
// ParseNumber reads.
func numberAnswer(ans any) error {
	raw, _ := ans.(string)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if _, ok := ParseNumber(raw); !ok {
		return fmt.Errorf("%q is not a number", strings.TrimSpace(raw))
	}
	return nil
}

// ParseNumber reads a numeric answer, allowing surrounding spaces and "_"
// or "," digit grouping.
func ParseNumber(raw string) (float64, bool) {
	clean := strings.NewReplacer("_", "", ",", "").Replace(strings.TrimSpace(raw))
	if clean == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(clean, 64)
	return f, err == nil
}

// pageSize shows short lists whole and caps long ones.
func pageSize(cfg SelectConfig) int {
	if cfg.PageSize > 0 {
		return cfg.PageSize
	}
	return min(max(len(cfg.Options), minPageSize), maxPageSize)
}

func validIndices(indices []int, n int) []int {
	var out []int
	for _, idx := range indices {
		if idx >= 0 && idx < n && !slices.Contains(out, idx) {
			out = append(out, idx)
		}
	}
	return out
}

func withPlaceholder(help, placeholder string) string {
	switch {
	case placeholder == "":
		return help
	case help == "":
		return "e.g. " + placeholder
	default:
		return help + " (e.g. " + placeholder + ")"
	}
}
