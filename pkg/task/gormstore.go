package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// GormStore is a task store on top of gorm, used with the SQLite driver.
// Times are written in UTC so that SQLite's text comparison orders them.
type GormStore struct {
	db    *gorm.DB
	clock Clock
}

// NewGormStore creates a GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, clock: time.Now}
}

// SetClock replaces the time source used for timestamps and day boundaries.
func (s *GormStore) SetClock(c Clock) {
	s.clock = c
}

func (s *GormStore) now() time.Time {
	return s.clock().Truncate(time.Microsecond)
}

// EnsureTable runs the tasks auto-migration.
func (s *GormStore) EnsureTable(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Task{}); err != nil {
		return storeErr("migrate tasks", err)
	}
	return nil
}

// Create validates and inserts a new task.
func (s *GormStore) Create(ctx context.Context, in Input, by Attribution) (*Task, error) {
	t, err := in.build(s.now(), by)
	if err != nil {
		return nil, err
	}
	row := *t
	toUTC(&row)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, storeErr("create task", err)
	}
	t.ID = row.ID
	return t, nil
}

// Get retrieves a single task by ID.
func (s *GormStore) Get(ctx context.Context, id int64) (*Task, error) {
	var t Task
	if err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeErr(fmt.Sprintf("get task %d", id), err)
	}
	return &t, nil
}

// Update applies the supplied fields inside a transaction.
func (s *GormStore) Update(ctx context.Context, id int64, p Patch, by Attribution) (*Task, error) {
	changes, err := p.changes(by)
	if err != nil {
		return nil, err
	}

	var out Task
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur Task
		if err := tx.First(&cur, "id = ?", id).Error; err != nil {
			return err
		}

		now := s.now()
		if now.Before(cur.LastUpdatedOn) {
			now = cur.LastUpdatedOn
		}
		updates := map[string]any{"last_updated_on": now.UTC()}
		for _, c := range changes {
			if ts, ok := c.value.(time.Time); ok {
				c.value = ts.UTC()
			}
			updates[c.column] = c.value
		}
		if err := tx.Model(&Task{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&out, "id = ?", id).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr(fmt.Sprintf("update task %d", id), err)
	}
	return &out, nil
}

// Delete removes a task and reports whether a row existed.
func (s *GormStore) Delete(ctx context.Context, id int64) (bool, error) {
	result := s.db.WithContext(ctx).Delete(&Task{}, "id = ?", id)
	if result.Error != nil {
		return false, storeErr(fmt.Sprintf("delete task %d", id), result.Error)
	}
	return result.RowsAffected > 0, nil
}

// All returns every task, newest first.
func (s *GormStore) All(ctx context.Context) ([]Task, error) {
	return s.find("list tasks", s.newestFirst(ctx))
}

// Search matches title, description or remarks case-insensitively.
// SQLite's LOWER only folds ASCII, so rows are matched with MatchesSearch.
func (s *GormStore) Search(ctx context.Context, query string) ([]Task, error) {
	all, err := s.find("search tasks", s.newestFirst(ctx))
	if err != nil {
		return nil, err
	}
	matched := all[:0]
	for _, t := range all {
		if MatchesSearch(t, query) {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

// ByStatus returns tasks with exactly the given status, newest first.
func (s *GormStore) ByStatus(ctx context.Context, status Status) ([]Task, error) {
	return s.find("tasks by status", s.newestFirst(ctx).Where("status = ?", string(status)))
}

// Overdue returns unfinished tasks due before today, earliest first.
func (s *GormStore) Overdue(ctx context.Context) ([]Task, error) {
	q := s.earliestDue(ctx).
		Where("due_date < ?", DayStart(s.clock()).UTC()).
		Where("status <> ?", string(StatusCompleted))
	return s.find("overdue tasks", q)
}

// DueToday returns tasks due today, completed ones included.
func (s *GormStore) DueToday(ctx context.Context) ([]Task, error) {
	w := TodayWindow(s.clock())
	q := s.earliestDue(ctx).Where("due_date >= ? AND due_date < ?", w.From.UTC(), w.To.UTC())
	return s.find("tasks due today", q)
}

// Upcoming returns unfinished tasks due in the next seven days, today included.
func (s *GormStore) Upcoming(ctx context.Context) ([]Task, error) {
	w := UpcomingWindow(s.clock())
	q := s.earliestDue(ctx).
		Where("due_date >= ? AND due_date < ?", w.From.UTC(), w.To.UTC()).
		Where("status <> ?", string(StatusCompleted))
	return s.find("upcoming tasks", q)
}

// Sorted returns every task ordered by field. Unknown fields sort by creation time.
func (s *GormStore) Sorted(ctx context.Context, field SortField, order SortOrder) ([]Task, error) {
	dir := "DESC"
	if order == Asc {
		dir = "ASC"
	}
	q := s.db.WithContext(ctx).Order(fmt.Sprintf("%s %s, id %s", sortColumn(field), dir, dir))
	return s.find("sort tasks", q)
}

func (s *GormStore) newestFirst(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Order("created_on DESC, id DESC")
}

func (s *GormStore) earliestDue(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Order("due_date ASC, id ASC")
}

func (s *GormStore) find(op string, q *gorm.DB) ([]Task, error) {
	tasks := []Task{}
	if err := q.Find(&tasks).Error; err != nil {
		return nil, storeErr(op, err)
	}
	return tasks, nil
}

func toUTC(t *Task) {
	t.DueDate = t.DueDate.UTC()
	t.CreatedOn = t.CreatedOn.UTC()
	t.LastUpdatedOn = t.LastUpdatedOn.UTC()
}
