// Package kvstore backs core.ExpiringStore with go-redis, the
// "in-memory expiring store" capability spec.md §1/§6 names as an
// external collaborator (the Redis-equivalent).
package kvstore

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/88448844/self-sovereign-identity-SSI/core"
)

// RedisStore adapts a *redis.Client to core.ExpiringStore.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore parses addr (a REDIS_URL-style connection string) and
// returns a connected store.
func NewRedisStore(addr string) (*RedisStore, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, err
	}
	return &RedisStore{rdb: redis.NewClient(opts)}, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttlSeconds int64) error {
	return s.rdb.Set(ctx, key, value, time.Duration(ttlSeconds)*time.Second).Err()
}

func (s *RedisStore) GetDel(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.GetDel(ctx, key).Result()
	if err == redis.Nil {
		return "", core.ErrNotFound
	}
	return v, err
}

func (s *RedisStore) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	return s.rdb.Eval(ctx, script, keys, args...).Result()
}

// Flush runs FLUSHDB, wiping every nonce and offer for the admin reset
// route.
func (s *RedisStore) Flush(ctx context.Context) error {
	return s.rdb.FlushDB(ctx).Err()
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
