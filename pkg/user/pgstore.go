package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// PgStore is a PostgreSQL-backed user store.
type PgStore struct {
	pool   *pgxpool.Pool
	hasher *PasswordHasher
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool, hasher *PasswordHasher) *PgStore {
	return &PgStore{pool: pool, hasher: hasher}
}

// EnsureTable creates the users table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id         BIGSERIAL PRIMARY KEY,
			username   VARCHAR(255) NOT NULL UNIQUE,
			password   VARCHAR(255) NOT NULL,
			created_on TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("ensure users table: %w", err)
	}
	return nil
}

// Create hashes password and inserts a new user.
func (s *PgStore) Create(ctx context.Context, username, password string) (*User, error) {
	username, err := normalize(username, password)
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{Username: username, PasswordHash: hash, CreatedOn: time.Now().Truncate(time.Microsecond)}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO users (username, password, created_on)
		VALUES ($1, $2, $3)
		RETURNING id`,
		u.Username, u.PasswordHash, u.CreatedOn).Scan(&u.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user %s: %w", username, err)
	}
	return u, nil
}

// Get returns a user by ID.
func (s *PgStore) Get(ctx context.Context, id int64) (*User, error) {
	u, err := s.scanOne(ctx, `SELECT id, username, password, created_on FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// ByUsername returns a user by username.
func (s *PgStore) ByUsername(ctx context.Context, username string) (*User, error) {
	u, err := s.scanOne(ctx, `SELECT id, username, password, created_on FROM users WHERE username = $1`, username)
	if err != nil {
		return nil, fmt.Errorf("user by name %s: %w", username, err)
	}
	return u, nil
}

// List returns all users, oldest first.
func (s *PgStore) List(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, username, password, created_on FROM users ORDER BY created_on ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedOn); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *PgStore) scanOne(ctx context.Context, query string, args ...any) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx, query, args...).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedOn)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
