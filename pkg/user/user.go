package user

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a user does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrUsernameTaken is returned when creating a user whose name is in use.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrInvalid is returned for an empty username or password.
	ErrInvalid = errors.New("username and password are required")
)

// User is an account that tasks are attributed to.
type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"size:255;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"column:password;size:255;not null" json:"-"`
	CreatedOn    time.Time `gorm:"not null" json:"createdOn"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// Store is the contract for user persistence.
type Store interface {
	// Create hashes password and inserts a new user.
	Create(ctx context.Context, username, password string) (*User, error)

	// Get returns a user by ID.
	Get(ctx context.Context, id int64) (*User, error)

	// ByUsername returns a user by username.
	ByUsername(ctx context.Context, username string) (*User, error)

	// List returns all users, oldest first.
	List(ctx context.Context) ([]User, error)

	// EnsureTable creates the users table if it doesn't exist.
	EnsureTable(ctx context.Context) error
}

func normalize(username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", ErrInvalid
	}
	return username, nil
}
