package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps entries in Redis under prefix:key with a native TTL.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore wraps rdb.  An empty prefix defaults to "cache".
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "cache"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(k string) string { return s.prefix + ":" + k }

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string, dst interface{}) error {
	bs, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(bs, dst)
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	bs, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(key), bs, ttl).Err()
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	return s.rdb.Del(ctx, full...).Err()
}
