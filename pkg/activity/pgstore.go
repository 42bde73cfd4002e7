package activity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const eventColumns = `seq, id, type, task_id, actor, timestamp, content, hash, prev_hash`

// PgStore is a PostgreSQL-backed activity store with hash-chained integrity.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the task_activity table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS task_activity (
			seq       BIGSERIAL PRIMARY KEY,
			id        TEXT NOT NULL UNIQUE,
			type      TEXT NOT NULL,
			task_id   BIGINT NOT NULL,
			actor     TEXT NOT NULL DEFAULT '',
			timestamp TIMESTAMPTZ NOT NULL,
			content   TEXT NOT NULL DEFAULT '{}',
			hash      TEXT NOT NULL,
			prev_hash TEXT NOT NULL DEFAULT ''
		)`)
	if err != nil {
		return fmt.Errorf("ensure task_activity table: %w", err)
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_task_activity_task ON task_activity(task_id, seq)`)
	if err != nil {
		return fmt.Errorf("ensure task_activity table: %w", err)
	}
	return nil
}

// Append creates and stores a new event, computing the hash chain.
// The chain head is locked for the duration of the insert.
func (s *PgStore) Append(ctx context.Context, eventType string, taskID int64, actor string, content any) (*Event, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `LOCK TABLE task_activity IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return nil, fmt.Errorf("lock task_activity: %w", err)
	}

	var prevHash string
	err = tx.QueryRow(ctx, `SELECT hash FROM task_activity ORDER BY seq DESC LIMIT 1`).Scan(&prevHash)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("read chain head: %w", err)
	}

	e, err := newEvent(prevHash, eventType, taskID, actor, content)
	if err != nil {
		return nil, err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO task_activity (id, type, task_id, actor, timestamp, content, hash, prev_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING seq`,
		e.ID, e.Type, e.TaskID, e.Actor, e.Timestamp, string(e.Content), e.Hash, e.PrevHash).Scan(&e.Seq)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit event: %w", err)
	}
	return e, nil
}

// Recent returns the latest events, newest first.
func (s *PgStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	return s.scanMany(ctx, `SELECT `+eventColumns+` FROM task_activity ORDER BY seq DESC LIMIT $1`, clampLimit(limit))
}

// ForTask returns the latest events for one task, newest first.
func (s *PgStore) ForTask(ctx context.Context, taskID int64, limit int) ([]Event, error) {
	return s.scanMany(ctx, `
		SELECT `+eventColumns+` FROM task_activity
		WHERE task_id = $1 ORDER BY seq DESC LIMIT $2`, taskID, clampLimit(limit))
}

// VerifyChain walks the entire chain in append order and verifies hash integrity.
func (s *PgStore) VerifyChain(ctx context.Context) error {
	events, err := s.scanMany(ctx, `SELECT `+eventColumns+` FROM task_activity ORDER BY seq ASC`)
	if err != nil {
		return fmt.Errorf("verify chain query: %w", err)
	}
	return verify(events)
}

func (s *PgStore) scanMany(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		var content string
		if err := rows.Scan(&e.Seq, &e.ID, &e.Type, &e.TaskID, &e.Actor, &e.Timestamp, &content, &e.Hash, &e.PrevHash); err != nil {
			return nil, err
		}
		e.Content = []byte(content)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return events, nil
}
