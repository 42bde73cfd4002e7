package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// record is the gorm row for an Event.
type record struct {
	Seq       int64     `gorm:"primaryKey;autoIncrement"`
	EventID   string    `gorm:"column:id;size:36;uniqueIndex;not null"`
	Type      string    `gorm:"size:64;not null"`
	TaskID    int64     `gorm:"not null;index"`
	Actor     string    `gorm:"size:255;not null;default:''"`
	Timestamp time.Time `gorm:"not null"`
	Content   string    `gorm:"type:text;not null"`
	Hash      string    `gorm:"size:64;not null"`
	PrevHash  string    `gorm:"size:64;not null;default:''"`
}

func (record) TableName() string {
	return "task_activity"
}

func (r record) event() Event {
	return Event{
		Seq:       r.Seq,
		ID:        r.EventID,
		Type:      r.Type,
		TaskID:    r.TaskID,
		Actor:     r.Actor,
		Timestamp: r.Timestamp,
		Content:   []byte(r.Content),
		Hash:      r.Hash,
		PrevHash:  r.PrevHash,
	}
}

// GormStore is a gorm-backed activity store.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// EnsureTable runs the task_activity auto-migration.
func (s *GormStore) EnsureTable(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&record{}); err != nil {
		return fmt.Errorf("migrate task_activity: %w", err)
	}
	return nil
}

// Append creates and stores a new event, computing the hash chain.
func (s *GormStore) Append(ctx context.Context, eventType string, taskID int64, actor string, content any) (*Event, error) {
	var out Event
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var head record
		prevHash := ""
		err := tx.Order("seq DESC").Take(&head).Error
		switch {
		case err == nil:
			prevHash = head.Hash
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("read chain head: %w", err)
		}

		e, err := newEvent(prevHash, eventType, taskID, actor, content)
		if err != nil {
			return err
		}
		row := record{
			EventID:   e.ID,
			Type:      e.Type,
			TaskID:    e.TaskID,
			Actor:     e.Actor,
			Timestamp: e.Timestamp,
			Content:   string(e.Content),
			Hash:      e.Hash,
			PrevHash:  e.PrevHash,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		e.Seq = row.Seq
		out = *e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Recent returns the latest events, newest first.
func (s *GormStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	return s.find(s.db.WithContext(ctx).Order("seq DESC").Limit(clampLimit(limit)))
}

// ForTask returns the latest events for one task, newest first.
func (s *GormStore) ForTask(ctx context.Context, taskID int64, limit int) ([]Event, error) {
	return s.find(s.db.WithContext(ctx).Where("task_id = ?", taskID).Order("seq DESC").Limit(clampLimit(limit)))
}

// VerifyChain walks the entire chain in append order and verifies hash integrity.
func (s *GormStore) VerifyChain(ctx context.Context) error {
	events, err := s.find(s.db.WithContext(ctx).Order("seq ASC"))
	if err != nil {
		return fmt.Errorf("verify chain query: %w", err)
	}
	return verify(events)
}

func (s *GormStore) find(q *gorm.DB) ([]Event, error) {
	var rows []record
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	events := make([]Event, len(rows))
	for i, r := range rows {
		events[i] = r.event()
	}
	return events, nil
}
