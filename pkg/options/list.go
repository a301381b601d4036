package options

import (
	"bufio"
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/goliatone/go-formengine/pkg/schema"
)

// LoadList reads one option per line. Blank lines and lines starting with #
// are skipped, a tab separates the value from its label, and repeated values
// keep their first occurrence. The result is sorted by label.
func LoadList(r io.Reader) ([]schema.Option, error) {
	if r == nil {
		return nil, fmt.Errorf("options: missing reader")
	}

	scanner := bufio.NewScanner(r)
	out := make([]schema.Option, 0, 128)
	seen := map[string]struct{}{}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		value, label, found := strings.Cut(line, "\t")
		value = strings.TrimSpace(value)
		label = strings.TrimSpace(label)
		if !found || label == "" {
			label = value
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, schema.Option{Label: label, Value: value})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	slices.SortStableFunc(out, func(a, b schema.Option) int {
		return cmp.Compare(a.Label, b.Label)
	})
	return out, nil
}
