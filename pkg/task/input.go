package task

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// When is a due date supplied either as a time value or as an ISO-8601 string.
// The string form is resolved on validation so a bad date surfaces as a
// ValidationError rather than a decode failure.
type When struct {
	Time time.Time
	Raw  string
}

// At wraps a time value.
func At(t time.Time) When { return When{Time: t} }

// Parse wraps an unparsed date string.
func Parse(s string) When { return When{Raw: s} }

// UnmarshalJSON accepts a JSON string.
func (w *When) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*w = When{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("dueDate must be a date string")
	}
	*w = When{Raw: s}
	return nil
}

// MarshalJSON renders the resolved time when present, else the raw string.
func (w When) MarshalJSON() ([]byte, error) {
	if !w.Time.IsZero() {
		return json.Marshal(w.Time)
	}
	return json.Marshal(w.Raw)
}

var dateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Resolve returns the due date as a time value.
func (w When) Resolve() (time.Time, error) {
	if !w.Time.IsZero() {
		return w.Time, nil
	}
	s := strings.TrimSpace(w.Raw)
	if s == "" {
		return time.Time{}, invalid("dueDate", "Required")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, invalid("dueDate", "Invalid date format")
}

// Input is the payload for creating a task.
type Input struct {
	Title             string  `json:"title"`
	Description       *string `json:"description"`
	DueDate           When    `json:"dueDate"`
	Status            Status  `json:"status"`
	Remarks           *string `json:"remarks"`
	CreatedByID       *int64  `json:"createdById"`
	CreatedByName     *string `json:"createdByName"`
	LastUpdatedByID   *int64  `json:"lastUpdatedById"`
	LastUpdatedByName *string `json:"lastUpdatedByName"`
}

// Patch carries the fields of a partial update. Nil means unchanged.
// Creation attribution has no field here: it is write-once.
type Patch struct {
	Title             *string `json:"title"`
	Description       *string `json:"description"`
	DueDate           *When   `json:"dueDate"`
	Status            *Status `json:"status"`
	Remarks           *string `json:"remarks"`
	LastUpdatedByID   *int64  `json:"lastUpdatedById"`
	LastUpdatedByName *string `json:"lastUpdatedByName"`
}

func validTitle(title string) (string, error) {
	t := strings.TrimSpace(title)
	if t == "" {
		return "", invalid("title", "Title is required")
	}
	if utf8.RuneCountInString(t) > MaxTitleLen {
		return "", invalid("title", "Title must be at most %d characters", MaxTitleLen)
	}
	return t, nil
}

func validStatus(s Status) error {
	if !s.Valid() {
		return invalid("status", "Invalid status %q", string(s))
	}
	return nil
}

// build validates in and returns the task row to insert, stamped with now.
func (in Input) build(now time.Time, by Attribution) (*Task, error) {
	title, err := validTitle(in.Title)
	if err != nil {
		return nil, err
	}
	due, err := in.DueDate.Resolve()
	if err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = StatusNotStarted
	}
	if err := validStatus(status); err != nil {
		return nil, err
	}

	t := &Task{
		Title:         title,
		Description:   in.Description,
		DueDate:       due.Truncate(time.Microsecond),
		Status:        status,
		Remarks:       in.Remarks,
		CreatedOn:     now,
		LastUpdatedOn: now,
	}

	t.CreatedByID, t.CreatedByName = in.CreatedByID, in.CreatedByName
	if t.CreatedByID == nil && t.CreatedByName == nil {
		t.CreatedByID, t.CreatedByName = by.ID, nameOrNil(by.Name)
	}
	t.LastUpdatedByID, t.LastUpdatedByName = in.LastUpdatedByID, in.LastUpdatedByName
	if t.LastUpdatedByID == nil && t.LastUpdatedByName == nil {
		t.LastUpdatedByID, t.LastUpdatedByName = t.CreatedByID, t.CreatedByName
	}
	return t, nil
}

// change is one column assignment derived from a Patch.
type change struct {
	column string
	value  any
}

// changes validates p and returns the column assignments it implies,
// excluding last_updated_on which the stores set themselves.
func (p Patch) changes(by Attribution) ([]change, error) {
	var out []change
	if p.Title != nil {
		title, err := validTitle(*p.Title)
		if err != nil {
			return nil, err
		}
		out = append(out, change{"title", title})
	}
	if p.Description != nil {
		out = append(out, change{"description", *p.Description})
	}
	if p.DueDate != nil {
		due, err := p.DueDate.Resolve()
		if err != nil {
			return nil, err
		}
		out = append(out, change{"due_date", due.Truncate(time.Microsecond)})
	}
	if p.Status != nil {
		if err := validStatus(*p.Status); err != nil {
			return nil, err
		}
		out = append(out, change{"status", string(*p.Status)})
	}
	if p.Remarks != nil {
		out = append(out, change{"remarks", *p.Remarks})
	}

	if p.LastUpdatedByID != nil || p.LastUpdatedByName != nil {
		if p.LastUpdatedByID != nil {
			out = append(out, change{"last_updated_by_id", *p.LastUpdatedByID})
		}
		if p.LastUpdatedByName != nil {
			out = append(out, change{"last_updated_by_name", *p.LastUpdatedByName})
		}
	} else if by.Name != "" || by.ID != nil {
		out = append(out,
			change{"last_updated_by_id", by.ID},
			change{"last_updated_by_name", nameOrNil(by.Name)})
	}
	return out, nil
}

func nameOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
