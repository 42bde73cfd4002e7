package query

import (
	"time"

	"taskmaster/pkg/task"
)

// Counts are the sidebar aggregates over a task list.
type Counts struct {
	All        int `json:"all"`
	Today      int `json:"today"`
	Upcoming   int `json:"upcoming"`
	Overdue    int `json:"overdue"`
	NotStarted int `json:"notStarted"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
}

// CountBuckets tallies tasks with the same predicates the stores use.
func CountBuckets(tasks []task.Task, now time.Time) Counts {
	c := Counts{All: len(tasks)}
	for _, t := range tasks {
		if task.IsDueToday(t, now) {
			c.Today++
		}
		if task.IsUpcoming(t, now) {
			c.Upcoming++
		}
		if task.IsOverdue(t, now) {
			c.Overdue++
		}
		switch t.Status {
		case task.StatusNotStarted:
			c.NotStarted++
		case task.StatusInProgress:
			c.InProgress++
		case task.StatusCompleted:
			c.Completed++
		}
	}
	return c
}
