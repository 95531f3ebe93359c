package datastore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisNotReady reports that the Redis server never answered a ping within
// the configured retry budget.
var ErrRedisNotReady = errors.New("datastore: redis not ready")

// RedisConfig controls how the Redis adapter connects.
type RedisConfig struct {
	ConnectionURL  string        `env:"GATEWISE_REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RetryAttempts  int           `env:"GATEWISE_REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"GATEWISE_REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"GATEWISE_REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
}

// RedisAdapter persists spec payloads as plain Redis string keys.
type RedisAdapter struct {
	client *redis.Client
}

// NewRedisAdapter wraps an existing client. The client's lifecycle belongs to
// the caller unless Shutdown is used.
func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

// ConnectRedis dials Redis with retries and returns a ready adapter.
func ConnectRedis(ctx context.Context, cfg RedisConfig) (*RedisAdapter, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	opt, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	for range cfg.RetryAttempts {
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err == nil {
			return NewRedisAdapter(client), nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}
	return nil, ErrRedisNotReady
}

// Get returns the stored payload for key, or ErrNotFound.
func (a *RedisAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := a.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return value, nil
}

// Set stores the payload for key without expiry. Spec payloads are replaced
// on every sync, so staleness is bounded by the writer, not a TTL.
func (a *RedisAdapter) Set(ctx context.Context, key string, value []byte) error {
	if err := a.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Shutdown closes the Redis client.
func (a *RedisAdapter) Shutdown(ctx context.Context) error {
	return a.client.Close()
}
