package query

import (
	"sort"
	"strings"

	"taskmaster/pkg/task"
)

// Intersect keeps the tasks of primary whose id also appears in other,
// in primary's order.
func Intersect(primary, other []task.Task) []task.Task {
	keep := make(map[int64]struct{}, len(other))
	for _, t := range other {
		keep[t.ID] = struct{}{}
	}
	out := make([]task.Task, 0, len(primary))
	for _, t := range primary {
		if _, ok := keep[t.ID]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Sort orders tasks in place by field. Strings compare byte-wise and dates
// chronologically; equal elements keep their relative order in both
// directions. Unknown fields sort by creation time.
func Sort(tasks []task.Task, field task.SortField, order task.SortOrder) {
	cmp := compareBy(field)
	sort.SliceStable(tasks, func(i, j int) bool {
		c := cmp(tasks[i], tasks[j])
		if order == task.Asc {
			return c < 0
		}
		return c > 0
	})
}

func compareBy(field task.SortField) func(a, b task.Task) int {
	switch field {
	case task.SortDueDate:
		return func(a, b task.Task) int { return a.DueDate.Compare(b.DueDate) }
	case task.SortStatus:
		return func(a, b task.Task) int { return strings.Compare(string(a.Status), string(b.Status)) }
	case task.SortTitle:
		return func(a, b task.Task) int { return strings.Compare(a.Title, b.Title) }
	default:
		return func(a, b task.Task) int { return a.CreatedOn.Compare(b.CreatedOn) }
	}
}
