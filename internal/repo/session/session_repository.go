// Package session stores the server-side records that session cookies point to.
package session

import (
	"context"
	"fmt"

	"github.com/mkrupp/jobhunter/internal/domain"
)

// Repository defines the interface for session persistence.
type Repository interface {
	// CreateSession stores a new session. It must be readable by GetSession once this returns.
	CreateSession(ctx context.Context, session domain.Session) error

	// GetSession retrieves a session by id.
	// Returns the session and true if found and not expired, or false with
	// ErrSessionNotFound otherwise.
	GetSession(ctx context.Context, id string) (*domain.Session, bool, error)

	// DeleteSession removes a session. Deleting an unknown session is not an error.
	DeleteSession(ctx context.Context, id string) error

	// PurgeExpired removes expired sessions and returns how many were removed.
	// Backends that expire keys on their own return 0.
	PurgeExpired(ctx context.Context) (int64, error)

	// Close releases any resources held by the repository.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
type RepositoryFactory func() (Repository, error)

// Backend names accepted by RepositoryConfig.Backend.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// RepositoryConfig selects and configures the session backend.
type RepositoryConfig struct {
	// Backend is either "sqlite" or "redis"
	Backend string `env:"BACKEND" default:"sqlite"`

	SQLite SQLiteSessionRepositoryConfig `envPrefix:"SQLITE_"`
	Redis  RedisSessionRepositoryConfig  `envPrefix:"REDIS_"`
}

// RepositoryFactoryFromConfig returns the factory for the configured backend.
func RepositoryFactoryFromConfig(cfg RepositoryConfig) (RepositoryFactory, error) {
	switch cfg.Backend {
	case BackendSQLite:
		return SQLiteSessionRepositoryFactory(cfg.SQLite), nil
	case BackendRedis:
		return RedisSessionRepositoryFactory(cfg.Redis), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
