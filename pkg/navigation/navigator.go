package navigation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/goliatone/go-formengine/pkg/orchestrator"
)

var (
	ErrNoNextPage     = errors.New("navigation: already on the last page")
	ErrNoPreviousPage = errors.New("navigation: already on the first page")
	ErrNotVisited     = errors.New("navigation: page has not been visited")
	ErrHookFailed     = errors.New("navigation: page hook failed")
)

// Form is the part of the engine a Navigator drives.
type Form interface {
	PageCount() int
	Validate(pageIndex int) (orchestrator.Result, error)
	CheckPage(pageIndex int) (orchestrator.Result, error)
	Values() map[string]any
	EmitPageVisited(page int)
	EmitPageValidated(page int)
}

// Hook runs after a page validates and before the navigator moves on. This
// is where external collaborators such as premium calculation or payment
// plug in; an error keeps the user on the page.
type Hook func(ctx context.Context, page int, values map[string]any) error

// FieldErrors is what a Hook returns to reject a page with messages keyed by
// the collaborator's own paths ("/body/zip", "animalName[1]"). Renderers map
// the paths onto field keys; paths they cannot place become form-level.
type FieldErrors map[string][]string

func (f FieldErrors) Error() string {
	paths := make([]string, 0, len(f))
	for path := range f {
		paths = append(paths, path)
	}
	slices.Sort(paths)
	parts := make([]string, 0, len(paths))
	for _, path := range paths {
		parts = append(parts, path+": "+strings.Join(f[path], "; "))
	}
	return strings.Join(parts, ", ")
}

// Step is the outcome of Next.
type Step struct {
	Page   int                 `json:"page"`
	Moved  bool                `json:"moved"`
	Result orchestrator.Result `json:"result"`
}

// Submission is the outcome of Submit. Values is nil unless the form is
// valid.
type Submission struct {
	Result orchestrator.Result `json:"result"`
	Values map[string]any      `json:"values,omitempty"`
}

// Option configures a Navigator.
type Option func(*Navigator)

// WithHook appends a page hook.
func WithHook(h Hook) Option {
	return func(n *Navigator) {
		if h != nil {
			n.hooks = append(n.hooks, h)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Navigator) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithStartPage begins navigation at page, marking every earlier page
// visited. Restored sessions use it.
func WithStartPage(page int) Option {
	return func(n *Navigator) {
		n.start = page
	}
}

// Navigator moves through the pages of one form.
type Navigator struct {
	form    Form
	hooks   []Hook
	logger  *slog.Logger
	start   int
	current int
	visited map[int]bool
}

// New creates a navigator positioned on the first page (or the configured
// start page) and emits its visited event.
func New(form Form, opts ...Option) *Navigator {
	n := &Navigator{form: form, logger: slog.Default(), visited: map[int]bool{}}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	last := form.PageCount() - 1
	n.current = max(0, min(n.start, last))
	for i := 0; i <= n.current; i++ {
		n.visited[i] = true
	}
	if last >= 0 {
		form.EmitPageVisited(n.current)
	}
	return n
}

// Current returns the current page index.
func (n *Navigator) Current() int {
	return n.current
}

// IsLast reports whether the current page is the final one.
func (n *Navigator) IsLast() bool {
	return n.current >= n.form.PageCount()-1
}

// Visited reports whether page has been visited.
func (n *Navigator) Visited(page int) bool {
	return n.visited[page]
}

// VisitedPages returns the visited page indexes in order.
func (n *Navigator) VisitedPages() []int {
	out := make([]int, 0, len(n.visited))
	for page := range n.visited {
		out = append(out, page)
	}
	slices.Sort(out)
	return out
}

// CanGoTo reports whether page may be jumped to: only visited pages are
// reachable from the stepper.
func (n *Navigator) CanGoTo(page int) bool {
	return page >= 0 && page < n.form.PageCount() && n.visited[page]
}

// CanLeavePage reports whether the current page currently validates.
func (n *Navigator) CanLeavePage() bool {
	res, err := n.form.CheckPage(n.current)
	return err == nil && res.IsValid
}

// MaxValidatedIndex returns the highest page index such that every page up
// to and including it validates, or -1 when the first page does not.
func (n *Navigator) MaxValidatedIndex() int {
	maxIndex := -1
	for i := range n.form.PageCount() {
		res, err := n.form.CheckPage(i)
		if err != nil || !res.IsValid {
			break
		}
		maxIndex = i
	}
	return maxIndex
}

// Next validates the current page, runs the hooks and advances. An invalid
// page is not an error: the returned Step carries the invalid keys and Moved
// is false.
func (n *Navigator) Next(ctx context.Context) (Step, error) {
	if n.IsLast() {
		return Step{Page: n.current}, ErrNoNextPage
	}
	res, err := n.form.Validate(n.current)
	if err != nil {
		return Step{Page: n.current}, err
	}
	if !res.IsValid {
		return Step{Page: n.current, Result: res}, nil
	}
	if err := n.runHooks(ctx, n.current); err != nil {
		return Step{Page: n.current, Result: res}, err
	}

	from := n.current
	n.current++
	n.visited[n.current] = true
	n.form.EmitPageVisited(n.current)
	n.form.EmitPageValidated(from)
	n.logger.Debug("navigation: advanced", "from", from, "to", n.current)
	return Step{Page: n.current, Moved: true, Result: res}, nil
}

// Previous moves back one page without validating.
func (n *Navigator) Previous() (int, error) {
	if n.current == 0 {
		return 0, ErrNoPreviousPage
	}
	n.current--
	return n.current, nil
}

// GoTo jumps to a visited page.
func (n *Navigator) GoTo(page int) error {
	if !n.CanGoTo(page) {
		return fmt.Errorf("%w: %d", ErrNotVisited, page)
	}
	n.current = page
	return nil
}

// Submit validates every page and, when valid, runs the hooks for the final
// page and returns the submitted values.
func (n *Navigator) Submit(ctx context.Context) (Submission, error) {
	last := n.form.PageCount() - 1
	res, err := n.form.Validate(last)
	if err != nil {
		return Submission{}, err
	}
	if !res.IsValid {
		return Submission{Result: res}, nil
	}
	if err := n.runHooks(ctx, last); err != nil {
		return Submission{Result: res}, err
	}
	n.form.EmitPageValidated(last)
	return Submission{Result: res, Values: n.form.Values()}, nil
}

func (n *Navigator) runHooks(ctx context.Context, page int) error {
	if len(n.hooks) == 0 {
		return nil
	}
	values := n.form.Values()
	for _, hook := range n.hooks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := hook(ctx, page, values); err != nil {
			return fmt.Errorf("%w: page %d: %w", ErrHookFailed, page, err)
		}
	}
	return nil
}
