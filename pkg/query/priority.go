package query

import (
	"time"

	"taskmaster/pkg/task"
)

// Level is a derived urgency computed from the due date. It is never stored.
type Level string

const (
	LevelOverdue Level = "overdue"
	LevelHigh    Level = "high"
	LevelMedium  Level = "medium"
	LevelLow     Level = "low"
)

// MediumDays is how many days after today still count as medium priority.
const MediumDays = 3

// Priority classifies due against the calendar day of now.
func Priority(due, now time.Time) Level {
	today := task.DayStart(now)
	day := task.DayStart(due.In(now.Location()))
	switch {
	case day.Before(today):
		return LevelOverdue
	case day.Equal(today):
		return LevelHigh
	case day.Before(today.AddDate(0, 0, MediumDays+1)):
		return LevelMedium
	default:
		return LevelLow
	}
}
