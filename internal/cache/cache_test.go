package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	TripID uint64 `json:"trip_id"`
	Free   int    `json:"free"`
}

func TestRedisStore_RoundTripAndTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	s := NewRedisStore(rdb, "bus")
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "availability:1", payload{TripID: 1, Free: 12}, 30*time.Second))
	assert.True(t, mr.Exists("bus:availability:1"))

	var got payload
	require.NoError(t, s.Get(ctx, "availability:1", &got))
	assert.Equal(t, 12, got.Free)

	mr.FastForward(31 * time.Second)
	assert.ErrorIs(t, s.Get(ctx, "availability:1", &got), ErrMiss)
}

func TestRedisStore_Delete(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	s := NewRedisStore(rdb, "")
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", payload{Free: 1}, time.Minute))
	require.NoError(t, s.Set(ctx, "b", payload{Free: 2}, time.Minute))
	require.NoError(t, s.Delete(ctx, "a", "b", "missing"))
	assert.False(t, mr.Exists("cache:a"))
	assert.False(t, mr.Exists("cache:b"))
}

func TestMemoryStore_Expiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := NewMemoryStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", payload{Free: 3}, 10*time.Second))
	var got payload
	require.NoError(t, s.Get(ctx, "k", &got))
	assert.Equal(t, 3, got.Free)

	now = now.Add(10 * time.Second)
	assert.ErrorIs(t, s.Get(ctx, "k", &got), ErrMiss)

	require.NoError(t, s.Set(ctx, "k", payload{Free: 4}, time.Second))
	require.NoError(t, s.Delete(ctx, "k"))
	assert.ErrorIs(t, s.Get(ctx, "k", &got), ErrMiss)
}
