package query

import (
	"context"

	"taskmaster/pkg/task"
)

// Reader is the read side of task.Store the composer needs.
type Reader interface {
	All(ctx context.Context) ([]task.Task, error)
	Search(ctx context.Context, query string) ([]task.Task, error)
	ByStatus(ctx context.Context, status task.Status) ([]task.Task, error)
	Overdue(ctx context.Context) ([]task.Task, error)
	DueToday(ctx context.Context) ([]task.Task, error)
	Upcoming(ctx context.Context) ([]task.Task, error)
}

// Composer turns list parameters into one ordered task list.
//
// The primary set comes from the status filter when set, else the date
// bucket, else every task. A search term narrows the primary set by id, and
// a sort field reorders the result in memory. At most two store reads run
// per call.
type Composer struct {
	store Reader
}

// NewComposer creates a Composer over store.
func NewComposer(store Reader) *Composer {
	return &Composer{store: store}
}

// Compose runs the list pipeline for p.
func (c *Composer) Compose(ctx context.Context, p Params) ([]task.Task, error) {
	tasks, err := c.primary(ctx, p)
	if err != nil {
		return nil, err
	}

	if p.Search != "" && len(tasks) > 0 {
		matched, err := c.store.Search(ctx, p.Search)
		if err != nil {
			return nil, err
		}
		tasks = Intersect(tasks, matched)
	}

	if p.SortBy != "" {
		Sort(tasks, p.SortBy, p.SortOrder)
	}
	return tasks, nil
}

func (c *Composer) primary(ctx context.Context, p Params) ([]task.Task, error) {
	if p.Status != "" {
		return c.store.ByStatus(ctx, p.Status)
	}
	switch p.Filter {
	case FilterToday:
		return c.store.DueToday(ctx)
	case FilterUpcoming:
		return c.store.Upcoming(ctx)
	case FilterOverdue:
		return c.store.Overdue(ctx)
	}
	return c.store.All(ctx)
}
