package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mkrupp/jobhunter/internal/domain"
	"github.com/mkrupp/jobhunter/internal/infra/logging"
)

// RedisSessionRepositoryConfig holds configuration for the Redis session repository.
type RedisSessionRepositoryConfig struct {
	// URL is a redis:// connection URL
	URL string `env:"URL" default:"redis://localhost:6379/0"`
	// KeyPrefix namespaces session keys
	KeyPrefix string `env:"KEY_PREFIX" default:"jobhunter:session:"`
}

// RedisSessionRepository implements Repository on Redis. Each session is one
// JSON string key whose TTL is the session's remaining lifetime.
type RedisSessionRepository struct {
	client *redis.Client
	prefix string
	log    logging.Logger
	now    func() time.Time
}

var _ Repository = (*RedisSessionRepository)(nil)

// RedisSessionRepositoryFactory creates a factory for RedisSessionRepository.
func RedisSessionRepositoryFactory(cfg RedisSessionRepositoryConfig) RepositoryFactory {
	return func() (Repository, error) {
		return NewRedisSessionRepository(context.Background(), cfg)
	}
}

// NewRedisSessionRepository connects to Redis and verifies the connection.
func NewRedisSessionRepository(ctx context.Context, cfg RedisSessionRepositoryConfig) (*RedisSessionRepository, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisSessionRepository{
		client: client,
		prefix: cfg.KeyPrefix,
		log:    logging.GetLogger("repo.session.redis_session_repository").With(logging.Group("redis", "addr", opts.Addr)),
		now:    time.Now,
	}, nil
}

func (r *RedisSessionRepository) key(id string) string {
	return r.prefix + id
}

// CreateSession implements Repository.CreateSession.
func (r *RedisSessionRepository) CreateSession(ctx context.Context, session domain.Session) error {
	ttl := session.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return fmt.Errorf("create session: %w", domain.ErrSessionNotFound)
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := r.client.Set(ctx, r.key(session.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}

	return nil
}

// GetSession implements Repository.GetSession.
func (r *RedisSessionRepository) GetSession(ctx context.Context, id string) (*domain.Session, bool, error) {
	payload, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, errors.Join(domain.ErrSessionNotFound, err)
		}

		return nil, false, fmt.Errorf("get session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, false, fmt.Errorf("unmarshal session: %w", err)
	}

	if session.Expired(r.now()) {
		return nil, false, domain.ErrSessionNotFound
	}

	return &session, true, nil
}

// DeleteSession implements Repository.DeleteSession.
func (r *RedisSessionRepository) DeleteSession(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("del session: %w", err)
	}

	return nil
}

// PurgeExpired implements Repository.PurgeExpired. Keys carry a TTL, so there is nothing to do.
func (r *RedisSessionRepository) PurgeExpired(_ context.Context) (int64, error) {
	return 0, nil
}

// Close implements Repository.Close.
func (r *RedisSessionRepository) Close() error {
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}

	return nil
}
