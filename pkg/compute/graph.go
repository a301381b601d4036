// Package compute keeps derived fields up to date. Each derived field is
// wired to the fields it depends on; a change to any dependency recomputes
// the target and writes it back through the store, so chains of derived
// fields propagate.
//
// Wiring rejects edges that would close a cycle, which keeps every change
// cascade finite.
package compute

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/goliatone/go-formengine/internal/coerce"
	"github.com/goliatone/go-formengine/pkg/schema"
	"github.com/goliatone/go-formengine/pkg/store"
)

var (
	// ErrCycle is returned when wiring would create a circular dependency.
	ErrCycle = errors.New("compute: circular math dependency")
	// ErrAlreadyWired is returned when a target is wired twice.
	ErrAlreadyWired = errors.New("compute: field already wired")
)

// Fold combines dependency values with op. Values without a numeric reading
// count as zero. Division skips zero divisors.
func Fold(op schema.MathOperation, values []any) float64 {
	nums := make([]float64, len(values))
	for i, v := range values {
		nums[i] = coerce.NumberOrZero(v)
	}

	switch op.Normalize() {
	case schema.MathSum:
		total := 0.0
		for _, n := range nums {
			total += n
		}
		return total
	case schema.MathSubtract:
		if len(nums) == 0 {
			return 0
		}
		acc := nums[0]
		for _, n := range nums[1:] {
			acc -= n
		}
		return acc
	case schema.MathMultiply:
		acc := 1.0
		for _, n := range nums {
			acc *= n
		}
		return acc
	case schema.MathDivide:
		if len(nums) == 0 {
			return 0
		}
		acc := nums[0]
		for _, n := range nums[1:] {
			if n == 0 {
				continue
			}
			acc /= n
		}
		return acc
	default:
		return 0
	}
}

type wire struct {
	math   schema.Math
	unsubs []func()
}

// Graph wires derived fields to their dependencies inside one store.
type Graph struct {
	store      *store.Store
	logger     *slog.Logger
	hold       func(key string) bool
	wires      map[string]*wire
	dependents map[string][]string
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Graph) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithHold installs a predicate that suspends recomputation of a target while
// it returns true. The engine holds derived fields that are currently hidden
// and recomputes them when they are revealed.
func WithHold(fn func(key string) bool) Option {
	return func(g *Graph) {
		g.hold = fn
	}
}

// New creates an empty graph over s.
func New(s *store.Store, opts ...Option) *Graph {
	g := &Graph{
		store:      s,
		logger:     slog.Default(),
		wires:      map[string]*wire{},
		dependents: map[string][]string{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Wire subscribes target to every dependency of m and computes it once. A
// dependency listed twice is subscribed once but folded twice.
func (g *Graph) Wire(target string, m schema.Math) error {
	if _, ok := g.wires[target]; ok {
		return fmt.Errorf("%w: %q", ErrAlreadyWired, target)
	}
	deps := dedupe(m.DependsOn)
	for _, dep := range deps {
		if path := g.pathTo(target, dep); path != nil {
			cycle := append([]string{dep}, path...)
			return fmt.Errorf("%w: %s", ErrCycle, strings.Join(cycle, " -> "))
		}
	}

	w := &wire{math: schema.Math{Operation: m.Operation, DependsOn: slices.Clone(m.DependsOn)}}
	for _, dep := range deps {
		g.dependents[dep] = append(g.dependents[dep], target)
		w.unsubs = append(w.unsubs, g.store.OnChange(dep, func(string, any) {
			if err := g.Recompute(target); err != nil {
				g.logger.Warn("compute: recompute failed", "target", target, "error", err)
			}
		}))
	}
	g.wires[target] = w

	return g.Recompute(target)
}

// Unwire removes target's subscriptions and edges. It reports whether target
// was wired.
func (g *Graph) Unwire(target string) bool {
	w, ok := g.wires[target]
	if !ok {
		return false
	}
	for _, unsub := range w.unsubs {
		unsub()
	}
	for _, dep := range dedupe(w.math.DependsOn) {
		g.dependents[dep] = slices.DeleteFunc(g.dependents[dep], func(t string) bool { return t == target })
		if len(g.dependents[dep]) == 0 {
			delete(g.dependents, dep)
		}
	}
	delete(g.wires, target)
	return true
}

// Wired reports whether target is a wired derived field.
func (g *Graph) Wired(target string) bool {
	_, ok := g.wires[target]
	return ok
}

// Dependents returns the targets that read key.
func (g *Graph) Dependents(key string) []string {
	return slices.Clone(g.dependents[key])
}

// Targets returns every wired target, sorted.
func (g *Graph) Targets() []string {
	out := make([]string, 0, len(g.wires))
	for target := range g.wires {
		out = append(out, target)
	}
	slices.Sort(out)
	return out
}

// Recompute folds target's dependencies and writes the result when it
// differs from the current value. Missing targets are skipped.
func (g *Graph) Recompute(target string) error {
	w, ok := g.wires[target]
	if !ok || !g.store.Has(target) {
		return nil
	}
	if g.hold != nil && g.hold(target) {
		return nil
	}
	values := make([]any, len(w.math.DependsOn))
	for i, dep := range w.math.DependsOn {
		values[i] = g.store.Value(dep)
	}
	result := Fold(w.math.Operation, values)
	if current := g.store.Value(target); current != nil && coerce.Equal(current, result) {
		return nil
	}
	return g.store.SetValue(target, result, store.SetOptions{Pristine: true})
}

// pathTo returns the dependency path from `from` to `to` following
// dependent edges, or nil when `to` is unreachable.
func (g *Graph) pathTo(from, to string) []string {
	if from == to {
		return []string{from}
	}
	visited := map[string]bool{}
	var walk func(node string) []string
	walk = func(node string) []string {
		if node == to {
			return []string{node}
		}
		if visited[node] {
			return nil
		}
		visited[node] = true
		for _, next := range g.dependents[node] {
			if rest := walk(next); rest != nil {
				return append([]string{node}, rest...)
			}
		}
		return nil
	}
	return walk(from)
}

// CheckAcyclic reports a cycle in a static dependency map of target to
// dependencies without touching any store.
func CheckAcyclic(deps map[string][]string) error {
	const (
		unvisited = iota
		active
		done
	)
	state := map[string]int{}
	var stack []string

	var visit func(node string) error
	visit = func(node string) error {
		switch state[node] {
		case active:
			start := slices.Index(stack, node)
			cycle := append(slices.Clone(stack[start:]), node)
			return fmt.Errorf("%w: %s", ErrCycle, strings.Join(cycle, " -> "))
		case done:
			return nil
		}
		state[node] = active
		stack = append(stack, node)
		for _, dep := range deps[node] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[node] = done
		return nil
	}

	targets := make([]string, 0, len(deps))
	for target := range deps {
		targets = append(targets, target)
	}
	slices.Sort(targets)
	for _, target := range targets {
		if err := visit(target); err != nil {
			return err
		}
	}
	return nil
}

func dedupe(keys []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}
