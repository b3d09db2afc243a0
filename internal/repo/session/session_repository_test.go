package session_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/jobhunter/internal/domain"
	"github.com/mkrupp/jobhunter/internal/repo/session"
)

type backend struct {
	name string
	open func(t *testing.T) (session.Repository, *miniredis.Miniredis)
}

func backends() []backend {
	return []backend{
		{
			name: session.BackendSQLite,
			open: func(t *testing.T) (session.Repository, *miniredis.Miniredis) {
				t.Helper()

				factory, err := session.RepositoryFactoryFromConfig(session.RepositoryConfig{
					Backend: session.BackendSQLite,
					SQLite: session.SQLiteSessionRepositoryConfig{
						DatabasePath: filepath.Join(t.TempDir(), "sessions.db"),
					},
				})
				require.NoError(t, err)

				repo, err := factory()
				require.NoError(t, err)

				return repo, nil
			},
		},
		{
			name: session.BackendRedis,
			open: func(t *testing.T) (session.Repository, *miniredis.Miniredis) {
				t.Helper()

				mr := miniredis.RunT(t)

				factory, err := session.RepositoryFactoryFromConfig(session.RepositoryConfig{
					Backend: session.BackendRedis,
					Redis: session.RedisSessionRepositoryConfig{
						URL:       "redis://" + mr.Addr() + "/0",
						KeyPrefix: "test:session:",
					},
				})
				require.NoError(t, err)

				repo, err := factory()
				require.NoError(t, err)

				return repo, mr
			},
		},
	}
}

func TestRepository_Lifecycle(t *testing.T) {
	t.Parallel()

	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			repo, _ := b.open(t)
			t.Cleanup(func() { _ = repo.Close() })

			now := time.Now().UTC().Truncate(time.Millisecond)
			want := domain.Session{
				ID:        "s1",
				UserID:    "u1",
				CreatedAt: now,
				ExpiresAt: now.Add(time.Hour),
			}

			require.NoError(t, repo.CreateSession(ctx, want))

			got, ok, err := repo.GetSession(ctx, "s1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, want.UserID, got.UserID)
			assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))

			require.NoError(t, repo.DeleteSession(ctx, "s1"))
			require.NoError(t, repo.DeleteSession(ctx, "s1"))

			_, ok, err = repo.GetSession(ctx, "s1")
			assert.False(t, ok)
			assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
		})
	}
}

func TestRepository_Unknown(t *testing.T) {
	t.Parallel()

	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			t.Parallel()

			repo, _ := b.open(t)
			t.Cleanup(func() { _ = repo.Close() })

			got, ok, err := repo.GetSession(context.Background(), "missing")
			assert.Nil(t, got)
			assert.False(t, ok)
			assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
		})
	}
}

func TestRedisRepository_ExpiresWithTTL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mr := miniredis.RunT(t)

	repo, err := session.NewRedisSessionRepository(ctx, session.RedisSessionRepositoryConfig{
		URL:       "redis://" + mr.Addr() + "/0",
		KeyPrefix: "test:",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	now := time.Now()
	require.NoError(t, repo.CreateSession(ctx, domain.Session{
		ID:        "s1",
		UserID:    "u1",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Minute),
	}))

	assert.True(t, mr.Exists("test:s1"))

	mr.FastForward(2 * time.Minute)

	_, ok, err := repo.GetSession(ctx, "s1")
	assert.False(t, ok)
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
}

func TestRepositoryFactoryFromConfig_UnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := session.RepositoryFactoryFromConfig(session.RepositoryConfig{Backend: "memcached"})
	assert.True(t, errors.Is(err, session.ErrUnknownBackend))
}

func TestSQLiteRepository_PurgeExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	repo, err := session.NewSQLiteSessionRepository(session.SQLiteSessionRepositoryConfig{
		DatabasePath: filepath.Join(t.TempDir(), "sessions.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	now := time.Now()
	require.NoError(t, repo.CreateSession(ctx, domain.Session{
		ID: "live", UserID: "u1", CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}))
	require.NoError(t, repo.CreateSession(ctx, domain.Session{
		ID: "stale", UserID: "u2", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}))

	n, err := repo.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, ok, err := repo.GetSession(ctx, "live")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisRepository_PurgeExpiredIsNoop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mr := miniredis.RunT(t)

	repo, err := session.NewRedisSessionRepository(ctx, session.RedisSessionRepositoryConfig{
		URL:       "redis://" + mr.Addr() + "/0",
		KeyPrefix: "test:",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	now := time.Now()
	require.NoError(t, repo.CreateSession(ctx, domain.Session{
		ID: "s1", UserID: "u1", CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}))

	n, err := repo.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, mr.Exists("test:s1"))
}
