package query

import (
	"net/url"
	"strings"

	"taskmaster/pkg/task"
)

// Filter names a date bucket.
type Filter string

const (
	FilterNone     Filter = ""
	FilterToday    Filter = "today"
	FilterUpcoming Filter = "upcoming"
	FilterOverdue  Filter = "overdue"
)

// Params is a validated list request.
type Params struct {
	Filter    Filter
	Status    task.Status // empty when not set
	Search    string      // trimmed; empty when not set
	SortBy    task.SortField
	SortOrder task.SortOrder
}

// ParseParams reads filter, status, search, sortBy and sortOrder from v.
// Empty values and filter=all mean "not set". Anything unrecognised is a
// *task.ValidationError.
func ParseParams(v url.Values) (Params, error) {
	p := Params{SortOrder: task.Desc}

	switch f := Filter(strings.TrimSpace(v.Get("filter"))); f {
	case FilterNone, "all":
	case FilterToday, FilterUpcoming, FilterOverdue:
		p.Filter = f
	default:
		return Params{}, &task.ValidationError{Field: "filter", Message: "Invalid filter " + string(f)}
	}

	if s := task.Status(strings.TrimSpace(v.Get("status"))); s != "" && s != "all" {
		if !s.Valid() {
			return Params{}, &task.ValidationError{Field: "status", Message: "Invalid status " + string(s)}
		}
		p.Status = s
	}

	p.Search = strings.TrimSpace(v.Get("search"))

	if raw := strings.TrimSpace(v.Get("sortBy")); raw != "" {
		f, ok := task.ParseSortField(raw)
		if !ok {
			return Params{}, &task.ValidationError{Field: "sortBy", Message: "Invalid sort field " + raw}
		}
		p.SortBy = f
	}

	switch o := task.SortOrder(strings.ToLower(strings.TrimSpace(v.Get("sortOrder")))); o {
	case "":
	case task.Asc, task.Desc:
		p.SortOrder = o
	default:
		return Params{}, &task.ValidationError{Field: "sortOrder", Message: "Invalid sort order " + string(o)}
	}

	return p, nil
}
