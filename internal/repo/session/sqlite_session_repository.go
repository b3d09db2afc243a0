package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // database/sql driver

	"github.com/mkrupp/jobhunter/internal/domain"
	"github.com/mkrupp/jobhunter/internal/infra/logging"
)

// SQLiteSessionRepositoryConfig holds configuration for the SQLite session repository.
type SQLiteSessionRepositoryConfig struct {
	// DatabasePath is the filesystem path to the SQLite database file
	DatabasePath string `env:"DATABASE_PATH" default:"var/storage/sessions.db"`
}

// SQLiteSessionRepository implements Repository on SQLite.
// Expired rows are filtered on read and purged on every write.
type SQLiteSessionRepository struct {
	db        *sql.DB
	log       logging.Logger
	writeLock *sync.Mutex
	now       func() time.Time
}

var _ Repository = (*SQLiteSessionRepository)(nil)

// SQLiteSessionRepositoryFactory creates a factory for SQLiteSessionRepository.
func SQLiteSessionRepositoryFactory(cfg SQLiteSessionRepositoryConfig) RepositoryFactory {
	return func() (Repository, error) {
		return NewSQLiteSessionRepository(cfg)
	}
}

// NewSQLiteSessionRepository opens the database and creates the schema if needed.
func NewSQLiteSessionRepository(cfg SQLiteSessionRepositoryConfig) (*SQLiteSessionRepository, error) {
	log := logging.GetLogger("repo.session.sqlite_session_repository").With(
		logging.Group("db", "path", cfg.DatabasePath),
	)

	db, err := sql.Open("sqlite", cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT    PRIMARY KEY,
			user_id    TEXT    NOT NULL,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS sessions_expires_at ON sessions (expires_at);
	`); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}

	db.SetConnMaxLifetime(5 * time.Minute)

	return &SQLiteSessionRepository{
		db:        db,
		log:       log,
		writeLock: new(sync.Mutex),
		now:       time.Now,
	}, nil
}

// CreateSession implements Repository.CreateSession.
func (r *SQLiteSessionRepository) CreateSession(ctx context.Context, session domain.Session) (err error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	defer func() {
		if err != nil {
			r.log.ErrorContext(ctx, "create session failed", "error", err)
		}
	}()

	if _, err := r.purgeLocked(ctx); err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)",
		session.ID,
		session.UserID,
		session.CreatedAt.UnixMilli(),
		session.ExpiresAt.UnixMilli(),
	); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// GetSession implements Repository.GetSession.
func (r *SQLiteSessionRepository) GetSession(ctx context.Context, id string) (*domain.Session, bool, error) {
	var (
		session   domain.Session
		createdAt int64
		expiresAt int64
	)

	err := r.db.QueryRowContext(ctx,
		"SELECT id, user_id, created_at, expires_at FROM sessions WHERE id = ?",
		id,
	).Scan(&session.ID, &session.UserID, &createdAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, errors.Join(domain.ErrSessionNotFound, err)
		}

		return nil, false, fmt.Errorf("query session: %w", err)
	}

	session.CreatedAt = time.UnixMilli(createdAt).UTC()
	session.ExpiresAt = time.UnixMilli(expiresAt).UTC()

	if session.Expired(r.now()) {
		return nil, false, domain.ErrSessionNotFound
	}

	return &session, true, nil
}

// DeleteSession implements Repository.DeleteSession.
func (r *SQLiteSessionRepository) DeleteSession(ctx context.Context, id string) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	if _, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

// PurgeExpired implements Repository.PurgeExpired.
func (r *SQLiteSessionRepository) PurgeExpired(ctx context.Context) (int64, error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	return r.purgeLocked(ctx)
}

func (r *SQLiteSessionRepository) purgeLocked(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", r.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge expired: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge expired: %w", err)
	}

	return n, nil
}

// Close implements Repository.Close.
func (r *SQLiteSessionRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}
