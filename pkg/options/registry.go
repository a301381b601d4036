package options

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-formengine/pkg/schema"
)

// ErrUnknownList is returned when a question or a search names a list that
// was never registered.
var ErrUnknownList = errors.New("options: unknown option list")

// Registry holds named option lists.
type Registry struct {
	mu    sync.RWMutex
	lists map[string][]schema.Option
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{lists: map[string][]schema.Option{}}
}

// Add registers list under name, replacing any earlier list.
func (r *Registry) Add(name string, list []schema.Option) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("options: list name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists[name] = slices.Clone(list)
	return nil
}

// LoadFile reads a list file from fsys and registers it under name.
func (r *Registry) LoadFile(fsys fs.FS, name, path string) error {
	f, err := fsys.Open(path)
	if err != nil {
		return fmt.Errorf("options: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	list, err := LoadList(f)
	if err != nil {
		return fmt.Errorf("options: read %s: %w", path, err)
	}
	return r.Add(name, list)
}

// Get returns a copy of the named list.
func (r *Registry) Get(name string) ([]schema.Option, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	list, ok := r.lists[name]
	return slices.Clone(list), ok
}

// Names returns the registered list names in order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.lists))
	for name := range r.lists {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Search runs Search over the named list.
func (r *Registry) Search(name, query string, limit int, cfg SearchConfig) ([]schema.Option, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownList, name)
	}
	r.mu.RLock()
	list, ok := r.lists[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownList, name)
	}
	return Search(list, query, limit, cfg), nil
}

// Resolve returns a copy of pages where every question naming a list through
// OptionsFrom, and carrying no inline options, has the list filled in.
func (r *Registry) Resolve(pages []schema.Page) ([]schema.Page, error) {
	out := slices.Clone(pages)
	for pi := range out {
		sections := slices.Clone(out[pi].Sections)
		for si := range sections {
			questions, err := r.resolveQuestions(sections[si].Questions)
			if err != nil {
				return nil, fmt.Errorf("page %d: section %q: %w", pi, sections[si].Title, err)
			}
			sections[si].Questions = questions
		}
		out[pi].Sections = sections
	}
	return out, nil
}

func (r *Registry) resolveQuestions(questions []schema.Question) ([]schema.Question, error) {
	if questions == nil {
		return nil, nil
	}
	out := slices.Clone(questions)
	for i := range out {
		q := &out[i]
		if q.OptionsFrom != "" && len(q.Options) == 0 {
			list, ok := r.Get(q.OptionsFrom)
			if !ok {
				return nil, fmt.Errorf("%s: %w: %s", q.Key, ErrUnknownList, q.OptionsFrom)
			}
			q.Options = list
		}
		children, err := r.resolveQuestions(q.Children)
		if err != nil {
			return nil, err
		}
		q.Children = children
	}
	return out, nil
}
