// Package db opens the configured storage backend and bundles the stores
// built on it.
package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"taskmaster/internal/config"
	"taskmaster/pkg/activity"
	"taskmaster/pkg/task"
	"taskmaster/pkg/user"
)

// Connect opens a pgx pool and pings it.
func Connect(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		pcfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// OpenSQLite opens a gorm connection to the SQLite file at path, creating
// its directory if needed. debug logs every statement.
func OpenSQLite(path string, debug bool) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	logLevel := logger.Silent
	if debug {
		logLevel = logger.Info
	}
	gdb, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_foreign_keys=on"), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// SQLite allows one writer; a single connection serialises them.
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	sqlDB.SetMaxOpenConns(1)
	return gdb, nil
}

// Stores bundles the stores of one backend.
type Stores struct {
	Tasks    task.Store
	Users    user.Store
	Activity activity.Store

	close func()
}

// Open connects to the backend named by cfg.Driver and builds its stores.
func Open(ctx context.Context, cfg config.DatabaseConfig, hasher *user.PasswordHasher) (*Stores, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := Connect(ctx, cfg.URL, cfg.MaxConns)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Tasks:    task.NewPgStore(pool),
			Users:    user.NewPgStore(pool, hasher),
			Activity: activity.NewPgStore(pool),
			close:    pool.Close,
		}, nil

	case config.DriverSQLite:
		gdb, err := OpenSQLite(cfg.Path, cfg.Debug)
		if err != nil {
			return nil, err
		}
		return NewGormStores(gdb, hasher), nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// NewGormStores builds the stores on an open gorm connection.
func NewGormStores(gdb *gorm.DB, hasher *user.PasswordHasher) *Stores {
	return &Stores{
		Tasks:    task.NewGormStore(gdb),
		Users:    user.NewGormStore(gdb, hasher),
		Activity: activity.NewGormStore(gdb),
		close: func() {
			if sqlDB, err := gdb.DB(); err == nil {
				sqlDB.Close()
			}
		},
	}
}

// EnsureTables creates every table that doesn't exist yet.
func (s *Stores) EnsureTables(ctx context.Context) error {
	if err := s.Users.EnsureTable(ctx); err != nil {
		return err
	}
	if err := s.Tasks.EnsureTable(ctx); err != nil {
		return err
	}
	return s.Activity.EnsureTable(ctx)
}

// Close releases the underlying connection.
func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}
