// Package cache provides a small JSON key/value cache with per-entry TTL.
// Values are always derived data: a miss or a failing backend only costs a
// recomputation from the authoritative store.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store is implemented by the Redis and in-memory backends.
type Store interface {
	// Get decodes the value stored under key into dst.
	Get(ctx context.Context, key string, dst interface{}) error
	// Set JSON-encodes v and stores it for ttl.
	Set(ctx context.Context, key string, v interface{}, ttl time.Duration) error
	// Delete removes keys; absent keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}
