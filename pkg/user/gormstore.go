package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// GormStore is a gorm-backed user store.
type GormStore struct {
	db     *gorm.DB
	hasher *PasswordHasher
}

// NewGormStore creates a GormStore.
func NewGormStore(db *gorm.DB, hasher *PasswordHasher) *GormStore {
	return &GormStore{db: db, hasher: hasher}
}

// EnsureTable runs the users auto-migration.
func (s *GormStore) EnsureTable(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&User{}); err != nil {
		return fmt.Errorf("migrate users: %w", err)
	}
	return nil
}

// Create hashes password and inserts a new user.
func (s *GormStore) Create(ctx context.Context, username, password string) (*User, error) {
	username, err := normalize(username, password)
	if err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("create user %s: %w", username, err)
	}
	if count > 0 {
		return nil, ErrUsernameTaken
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &User{Username: username, PasswordHash: hash, CreatedOn: time.Now().UTC().Truncate(time.Microsecond)}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user %s: %w", username, err)
	}
	return u, nil
}

// Get returns a user by ID.
func (s *GormStore) Get(ctx context.Context, id int64) (*User, error) {
	return s.first(ctx, "id = ?", id)
}

// ByUsername returns a user by username.
func (s *GormStore) ByUsername(ctx context.Context, username string) (*User, error) {
	return s.first(ctx, "username = ?", username)
}

// List returns all users, oldest first.
func (s *GormStore) List(ctx context.Context) ([]User, error) {
	users := []User{}
	if err := s.db.WithContext(ctx).Order("created_on ASC, id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *GormStore) first(ctx context.Context, cond string, arg any) (*User, error) {
	var u User
	if err := s.db.WithContext(ctx).First(&u, cond, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}
