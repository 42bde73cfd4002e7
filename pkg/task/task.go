package task

import (
	"context"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusNotStarted Status = "not-started"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is one of the recognized statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Statuses lists the recognized statuses in display order.
var Statuses = []Status{StatusNotStarted, StatusInProgress, StatusCompleted}

// MaxTitleLen is the longest title the store accepts, in characters.
const MaxTitleLen = 255

// Task is a unit of work tracked by the system.
type Task struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Title             string    `gorm:"size:255;not null" json:"title"`
	Description       *string   `json:"description"`
	DueDate           time.Time `gorm:"not null;index" json:"dueDate"`
	Status            Status    `gorm:"size:50;not null;default:not-started;index" json:"status"`
	Remarks           *string   `json:"remarks"`
	CreatedOn         time.Time `gorm:"not null;index" json:"createdOn"`
	LastUpdatedOn     time.Time `gorm:"not null" json:"lastUpdatedOn"`
	CreatedByID       *int64    `json:"createdById"`
	CreatedByName     *string   `gorm:"size:255" json:"createdByName"`
	LastUpdatedByID   *int64    `json:"lastUpdatedById"`
	LastUpdatedByName *string   `gorm:"size:255" json:"lastUpdatedByName"`
}

// TableName returns the table name for Task.
func (Task) TableName() string {
	return "tasks"
}

// Attribution identifies who performs a create or update.
type Attribution struct {
	ID   *int64
	Name string
}

// SortField names a sortable task field.
type SortField string

const (
	SortDueDate   SortField = "due-date"
	SortCreatedOn SortField = "created-date"
	SortStatus    SortField = "status"
	SortTitle     SortField = "title"
)

// ParseSortField maps a request value to a SortField.
func ParseSortField(s string) (SortField, bool) {
	switch f := SortField(s); f {
	case SortDueDate, SortCreatedOn, SortStatus, SortTitle:
		return f, true
	}
	return "", false
}

// SortOrder is asc or desc.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// Store is the contract for task persistence.
type Store interface {
	Create(ctx context.Context, in Input, by Attribution) (*Task, error)
	All(ctx context.Context) ([]Task, error)
	Get(ctx context.Context, id int64) (*Task, error)
	Update(ctx context.Context, id int64, p Patch, by Attribution) (*Task, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Search(ctx context.Context, query string) ([]Task, error)
	ByStatus(ctx context.Context, status Status) ([]Task, error)
	Overdue(ctx context.Context) ([]Task, error)
	DueToday(ctx context.Context) ([]Task, error)
	Upcoming(ctx context.Context) ([]Task, error)
	Sorted(ctx context.Context, field SortField, order SortOrder) ([]Task, error)
	EnsureTable(ctx context.Context) error
}

// Clock returns the current time. Stores use it for timestamps and day boundaries.
type Clock func() time.Time
