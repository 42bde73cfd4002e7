package task

import (
	"strings"
	"time"
)

// UpcomingDays is the width of the upcoming window, today included.
const UpcomingDays = 7

// Window is a half-open time range [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside w.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// DayStart returns midnight at the start of t's calendar day in t's location.
func DayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// TodayWindow is [midnight today, midnight tomorrow).
func TodayWindow(now time.Time) Window {
	start := DayStart(now)
	return Window{From: start, To: start.AddDate(0, 0, 1)}
}

// UpcomingWindow is [midnight today, midnight today+7 days).
func UpcomingWindow(now time.Time) Window {
	start := DayStart(now)
	return Window{From: start, To: start.AddDate(0, 0, UpcomingDays)}
}

// IsOverdue reports a task due before today that is not completed.
func IsOverdue(t Task, now time.Time) bool {
	return t.Status != StatusCompleted && t.DueDate.Before(DayStart(now))
}

// IsDueToday reports a task due today, whatever its status.
func IsDueToday(t Task, now time.Time) bool {
	return TodayWindow(now).Contains(t.DueDate)
}

// IsUpcoming reports a task due within the next seven days, today included,
// that is not completed.
func IsUpcoming(t Task, now time.Time) bool {
	return t.Status != StatusCompleted && UpcomingWindow(now).Contains(t.DueDate)
}

// MatchesStatus reports an exact status match.
func MatchesStatus(t Task, s Status) bool {
	return t.Status == s
}

// MatchesSearch reports a case-insensitive substring match of q against the
// title, description or remarks. An empty q matches everything.
func MatchesSearch(t Task, q string) bool {
	q = strings.ToLower(q)
	if strings.Contains(strings.ToLower(t.Title), q) {
		return true
	}
	if t.Description != nil && strings.Contains(strings.ToLower(*t.Description), q) {
		return true
	}
	return t.Remarks != nil && strings.Contains(strings.ToLower(*t.Remarks), q)
}

// likePattern turns q into a LIKE pattern matching q as a literal substring.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}
