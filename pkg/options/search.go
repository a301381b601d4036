package options

import (
	"cmp"
	"slices"
	"strings"

	"github.com/goliatone/go-formengine/internal/coerce"
	"github.com/goliatone/go-formengine/pkg/schema"
)

// EmptySearchMode decides what an empty query returns.
type EmptySearchMode string

const (
	EmptySearchNone EmptySearchMode = "none"
	EmptySearchTop  EmptySearchMode = "top"
)

// SearchConfig bounds search results.
type SearchConfig struct {
	DefaultLimit int
	MaxLimit     int
	EmptySearch  EmptySearchMode
}

// DefaultSearchConfig returns 50 results by default, never more than 200,
// and nothing for an empty query.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{DefaultLimit: 50, MaxLimit: 200, EmptySearch: EmptySearchNone}
}

func (c SearchConfig) limit(limit int) int {
	if limit < 0 {
		return 0
	}
	if limit == 0 {
		limit = c.DefaultLimit
	}
	if c.MaxLimit > 0 && limit > c.MaxLimit {
		return c.MaxLimit
	}
	return limit
}

// Search filters list by a case-insensitive substring of the label or value.
// Prefix matches rank first, then labels in order.
func Search(list []schema.Option, query string, limit int, cfg SearchConfig) []schema.Option {
	limit = cfg.limit(limit)
	if limit == 0 {
		return []schema.Option{}
	}

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		if cfg.EmptySearch != EmptySearchTop {
			return []schema.Option{}
		}
		return slices.Clone(list[:min(limit, len(list))])
	}

	type match struct {
		opt      schema.Option
		isPrefix bool
	}
	matches := make([]match, 0, 32)
	for _, opt := range list {
		label := strings.ToLower(opt.Label)
		value := strings.ToLower(coerce.String(opt.Value))
		if !strings.Contains(label, query) && !strings.Contains(value, query) {
			continue
		}
		matches = append(matches, match{
			opt:      opt,
			isPrefix: strings.HasPrefix(label, query) || strings.HasPrefix(value, query),
		})
	}

	slices.SortStableFunc(matches, func(a, b match) int {
		if a.isPrefix != b.isPrefix {
			if a.isPrefix {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.opt.Label, b.opt.Label)
	})

	out := make([]schema.Option, 0, min(limit, len(matches)))
	for _, m := range matches[:min(limit, len(matches))] {
		out = append(out, m.opt)
	}
	return out
}
