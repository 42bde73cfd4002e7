package activity

import (
	"context"
	"encoding/json"
	"time"
)

// Event types recorded for task mutations.
const (
	TaskCreated = "task.created"
	TaskUpdated = "task.updated"
	TaskDeleted = "task.deleted"
)

// Event is one entry in the hash-chained, append-only activity log.
type Event struct {
	Seq       int64           `json:"seq"`       // append order
	ID        string          `json:"id"`        // UUID v7
	Type      string          `json:"type"`      // e.g. "task.updated"
	TaskID    int64           `json:"taskId"`    // task the event is about
	Actor     string          `json:"actor"`     // display name of who did it
	Timestamp time.Time       `json:"timestamp"` // when it was recorded
	Content   json.RawMessage `json:"content"`   // snapshot or changed fields
	Hash      string          `json:"hash"`      // SHA-256 of canonical form
	PrevHash  string          `json:"prevHash"`  // hash chain link
}

// Store is the contract for activity persistence.
type Store interface {
	// Append records a new event, linking it to the current chain head.
	Append(ctx context.Context, eventType string, taskID int64, actor string, content any) (*Event, error)

	// Recent returns the latest events, newest first.
	Recent(ctx context.Context, limit int) ([]Event, error)

	// ForTask returns the latest events for one task, newest first.
	ForTask(ctx context.Context, taskID int64, limit int) ([]Event, error)

	// VerifyChain walks the log in append order and checks every hash.
	VerifyChain(ctx context.Context) error

	// EnsureTable creates the activity table if it doesn't exist.
	EnsureTable(ctx context.Context) error
}
