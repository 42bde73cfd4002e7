package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const taskColumns = `id, title, description, due_date, status, remarks, created_on, last_updated_on,
	created_by_id, created_by_name, last_updated_by_id, last_updated_by_name`

// PgStore is a PostgreSQL-backed task store.
type PgStore struct {
	pool  *pgxpool.Pool
	clock Clock
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool, clock: time.Now}
}

// SetClock replaces the time source used for timestamps and day boundaries.
func (s *PgStore) SetClock(c Clock) {
	s.clock = c
}

func (s *PgStore) now() time.Time {
	return s.clock().Truncate(time.Microsecond)
}

// EnsureTable creates the tasks table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id                   BIGSERIAL PRIMARY KEY,
			title                VARCHAR(255) NOT NULL,
			description          TEXT,
			due_date             TIMESTAMPTZ NOT NULL,
			status               VARCHAR(50) NOT NULL DEFAULT 'not-started',
			remarks              TEXT,
			created_on           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_updated_on      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_by_id        BIGINT,
			created_by_name      VARCHAR(255),
			last_updated_by_id   BIGINT,
			last_updated_by_name VARCHAR(255)
		)`)
	if err != nil {
		return storeErr("ensure tasks table", err)
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`)
	if err != nil {
		return storeErr("ensure tasks table", err)
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks(due_date)`)
	if err != nil {
		return storeErr("ensure tasks table", err)
	}
	return nil
}

// Create validates and inserts a new task.
func (s *PgStore) Create(ctx context.Context, in Input, by Attribution) (*Task, error) {
	t, err := in.build(s.now(), by)
	if err != nil {
		return nil, err
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO tasks (title, description, due_date, status, remarks, created_on, last_updated_on,
			created_by_id, created_by_name, last_updated_by_id, last_updated_by_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		t.Title, t.Description, t.DueDate, string(t.Status), t.Remarks, t.CreatedOn, t.LastUpdatedOn,
		t.CreatedByID, t.CreatedByName, t.LastUpdatedByID, t.LastUpdatedByName).Scan(&t.ID)
	if err != nil {
		return nil, storeErr("create task", err)
	}
	return t, nil
}

// Get retrieves a single task by ID.
func (s *PgStore) Get(ctx context.Context, id int64) (*Task, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr(fmt.Sprintf("get task %d", id), err)
	}
	return t, nil
}

// Update applies the supplied fields. last_updated_on never moves backwards.
func (s *PgStore) Update(ctx context.Context, id int64, p Patch, by Attribution) (*Task, error) {
	changes, err := p.changes(by)
	if err != nil {
		return nil, err
	}

	setClauses := "last_updated_on = GREATEST($1, last_updated_on)"
	args := []any{s.now()}
	argIdx := 2
	for _, c := range changes {
		setClauses += fmt.Sprintf(", %s = $%d", c.column, argIdx)
		args = append(args, c.value)
		argIdx++
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = $%d RETURNING %s", setClauses, argIdx, taskColumns)

	t, err := scanTask(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr(fmt.Sprintf("update task %d", id), err)
	}
	return t, nil
}

// Delete removes a task and reports whether a row existed.
func (s *PgStore) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return false, storeErr(fmt.Sprintf("delete task %d", id), err)
	}
	return tag.RowsAffected() > 0, nil
}

// All returns every task, newest first.
func (s *PgStore) All(ctx context.Context) ([]Task, error) {
	return s.list(ctx, "list tasks", `SELECT `+taskColumns+` FROM tasks ORDER BY created_on DESC, id DESC`)
}

// Search matches title, description or remarks case-insensitively.
func (s *PgStore) Search(ctx context.Context, query string) ([]Task, error) {
	return s.list(ctx, "search tasks", `
		SELECT `+taskColumns+` FROM tasks
		WHERE title ILIKE $1 OR description ILIKE $1 OR remarks ILIKE $1
		ORDER BY created_on DESC, id DESC`, likePattern(query))
}

// ByStatus returns tasks with exactly the given status, newest first.
func (s *PgStore) ByStatus(ctx context.Context, status Status) ([]Task, error) {
	return s.list(ctx, "tasks by status", `
		SELECT `+taskColumns+` FROM tasks WHERE status = $1
		ORDER BY created_on DESC, id DESC`, string(status))
}

// Overdue returns unfinished tasks due before today, earliest first.
func (s *PgStore) Overdue(ctx context.Context) ([]Task, error) {
	return s.list(ctx, "overdue tasks", `
		SELECT `+taskColumns+` FROM tasks
		WHERE due_date < $1 AND status <> $2
		ORDER BY due_date ASC, id ASC`, DayStart(s.clock()), string(StatusCompleted))
}

// DueToday returns tasks due today, completed ones included.
func (s *PgStore) DueToday(ctx context.Context) ([]Task, error) {
	w := TodayWindow(s.clock())
	return s.list(ctx, "tasks due today", `
		SELECT `+taskColumns+` FROM tasks
		WHERE due_date >= $1 AND due_date < $2
		ORDER BY due_date ASC, id ASC`, w.From, w.To)
}

// Upcoming returns unfinished tasks due in the next seven days, today included.
func (s *PgStore) Upcoming(ctx context.Context) ([]Task, error) {
	w := UpcomingWindow(s.clock())
	return s.list(ctx, "upcoming tasks", `
		SELECT `+taskColumns+` FROM tasks
		WHERE due_date >= $1 AND due_date < $2 AND status <> $3
		ORDER BY due_date ASC, id ASC`, w.From, w.To, string(StatusCompleted))
}

// Sorted returns every task ordered by field. Unknown fields sort by creation time.
func (s *PgStore) Sorted(ctx context.Context, field SortField, order SortOrder) ([]Task, error) {
	dir := "DESC"
	if order == Asc {
		dir = "ASC"
	}
	col := sortColumn(field)
	if field == SortTitle {
		col += ` COLLATE "C"`
	}
	return s.list(ctx, "sort tasks", fmt.Sprintf(`SELECT %s FROM tasks ORDER BY %s %s, id %s`, taskColumns, col, dir, dir))
}

func (s *PgStore) list(ctx context.Context, op, query string, args ...any) ([]Task, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()
	tasks, err := scanTaskRows(rows)
	if err != nil {
		return nil, storeErr(op, err)
	}
	return tasks, nil
}

func sortColumn(f SortField) string {
	switch f {
	case SortDueDate:
		return "due_date"
	case SortStatus:
		return "status"
	case SortTitle:
		return "title"
	default:
		return "created_on"
	}
}

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.DueDate, &t.Status, &t.Remarks, &t.CreatedOn, &t.LastUpdatedOn,
		&t.CreatedByID, &t.CreatedByName, &t.LastUpdatedByID, &t.LastUpdatedByName)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTaskRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Task, error) {
	tasks := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return tasks, nil
}
