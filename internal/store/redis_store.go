package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	carterrors "github.com/abgdnv/gocart/internal/errors"
	"github.com/go-redis/redis/v8"
)

// RedisStore implements KV on Redis plain string keys.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a store for addr, which is either a redis:// URL or a host:port pair.
func NewRedisStore(addr string, db int, timeout time.Duration) *RedisStore {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		// not a redis:// URL, use it as a plain address
		opts = &redis.Options{
			Addr:         addr,
			DB:           db,
			MinIdleConns: 1,
			DialTimeout:  timeout,
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
			PoolSize:     10,
			PoolTimeout:  timeout,
		}
	}
	return &RedisStore{client: redis.NewClient(opts)}
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", carterrors.ErrKeyNotFound
		}
		return "", fmt.Errorf("redis get %q: %w", key, err)
	}
	return val, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
