package catalog

import (
	"regexp"
	"strings"

	"github.com/Spok95/homestock/internal/domain/errs"
)

// Reindex assigns sort orders 1..n following order, which must list every id
// of current exactly once.
func Reindex(current, order []int64) (map[int64]int, error) {
	if len(order) != len(current) {
		return nil, errs.Validation("ids", "expected %d ids, got %d", len(current), len(order))
	}
	known := make(map[int64]bool, len(current))
	for _, id := range current {
		known[id] = true
	}
	out := make(map[int64]int, len(order))
	for i, id := range order {
		if !known[id] {
			return nil, errs.Validation("ids", "unknown id %d", id)
		}
		if _, dup := out[id]; dup {
			return nil, errs.Validation("ids", "id %d listed twice", id)
		}
		out[id] = i + 1
	}
	return out, nil
}

var colorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

const defaultTagColor = "#64748b"

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errs.Validation("name", "must not be empty")
	}
	return name, nil
}

func cleanColor(c string) (string, error) {
	c = strings.TrimSpace(c)
	if c == "" {
		return defaultTagColor, nil
	}
	if !colorRe.MatchString(c) {
		return "", errs.Validation("color", "want #rrggbb, got %q", c)
	}
	return strings.ToLower(c), nil
}
