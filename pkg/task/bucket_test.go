package task

import (
	"testing"
	"time"
)

func TestDateBuckets(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	today := DayStart(now)

	tests := []struct {
		name     string
		due      time.Time
		status   Status
		overdue  bool
		dueToday bool
		upcoming bool
	}{
		{"yesterday open", today.Add(-time.Second), StatusNotStarted, true, false, false},
		{"yesterday done", today.Add(-time.Second), StatusCompleted, false, false, false},
		{"midnight today", today, StatusInProgress, false, true, true},
		{"later today done", today.Add(20 * time.Hour), StatusCompleted, false, true, false},
		{"tomorrow", today.AddDate(0, 0, 1), StatusNotStarted, false, false, true},
		{"last upcoming instant", today.AddDate(0, 0, UpcomingDays).Add(-time.Nanosecond), StatusNotStarted, false, false, true},
		{"outside upcoming", today.AddDate(0, 0, UpcomingDays), StatusNotStarted, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := Task{DueDate: tt.due, Status: tt.status}
			if got := IsOverdue(task, now); got != tt.overdue {
				t.Errorf("IsOverdue = %v, want %v", got, tt.overdue)
			}
			if got := IsDueToday(task, now); got != tt.dueToday {
				t.Errorf("IsDueToday = %v, want %v", got, tt.dueToday)
			}
			if got := IsUpcoming(task, now); got != tt.upcoming {
				t.Errorf("IsUpcoming = %v, want %v", got, tt.upcoming)
			}
		})
	}
}

func TestMatchesSearch(t *testing.T) {
	task := Task{Title: "Pay Rent", Description: strPtr("landlord"), Remarks: nil}

	for q, want := range map[string]bool{
		"":         true,
		"rent":     true,
		"PAY":      true,
		"LANDLORD": true,
		"cheque":   false,
	} {
		if got := MatchesSearch(task, q); got != want {
			t.Errorf("MatchesSearch(%q) = %v, want %v", q, got, want)
		}
	}
}

func TestLikePattern(t *testing.T) {
	tests := map[string]string{
		"rent": "%rent%",
		"100%": `%100\%%`,
		"a_b":  `%a\_b%`,
		`c:\d`: `%c:\\d%`,
		"":     "%%",
	}
	for in, want := range tests {
		if got := likePattern(in); got != want {
			t.Errorf("likePattern(%q) = %q, want %q", in, got, want)
		}
	}
}
