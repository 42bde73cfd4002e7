package activity

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultLimit caps Recent and ForTask when the caller passes no limit.
const DefaultLimit = 50

// MaxLimit is the largest page the stores return.
const MaxLimit = 500

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// newEvent builds the next event after prevHash. content is marshalled once
// and the same bytes are hashed and stored.
func newEvent(prevHash, eventType string, taskID int64, actor string, content any) (*Event, error) {
	if content == nil {
		content = map[string]any{}
	}
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}
	e := &Event{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Type:      eventType,
		TaskID:    taskID,
		Actor:     actor,
		Timestamp: time.Now().UTC().Truncate(time.Microsecond),
		Content:   contentJSON,
		PrevHash:  prevHash,
	}
	e.Hash = computeHash(e.PrevHash, e.ID, e.Type, e.TaskID, e.Actor, e.Timestamp, e.Content)
	return e, nil
}

// computeHash computes a SHA-256 hash for chain integrity.
func computeHash(prevHash, id, eventType string, taskID int64, actor string, timestamp time.Time, contentJSON []byte) string {
	data := fmt.Sprintf("%s|%s|%s|%d|%s|%d|%s", prevHash, id, eventType, taskID, actor, timestamp.UnixNano(), string(contentJSON))
	h := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", h)
}

// verify checks events given in append order.
func verify(events []Event) error {
	prevHash := ""
	for i, e := range events {
		if e.PrevHash != prevHash {
			return fmt.Errorf("event %d (%s): prev_hash mismatch: got %s, want %s", i, e.ID, e.PrevHash, prevHash)
		}
		expected := computeHash(prevHash, e.ID, e.Type, e.TaskID, e.Actor, e.Timestamp, e.Content)
		if e.Hash != expected {
			return fmt.Errorf("event %d (%s): hash mismatch: got %s, want %s", i, e.ID, e.Hash, expected)
		}
		prevHash = e.Hash
	}
	return nil
}
