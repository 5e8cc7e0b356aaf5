package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func baseEnv() map[string]string {
	return map[string]string{
		"APP_ENV":    "test",
		"APP_PORT":   "8080",
		"DB_USER":    "bus",
		"DB_HOST":    "localhost",
		"DB_PORT":    "3306",
		"DB_NAME":    "bus",
		"JWT_SECRET": "secret",
	}
}

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(lookupFrom(baseEnv()))
	require.NoError(t, err)
	assert.Equal(t, StoreMySQL, cfg.StoreDriver)
	assert.Equal(t, 300*time.Second, cfg.HoldTTL)
	assert.Equal(t, 5*time.Second, cfg.ReaperInterval)
	assert.Equal(t, 500, cfg.ReaperBatch)
	assert.Equal(t, PubSubMemory, cfg.PubSubBackend)
	assert.Equal(t, time.Hour, cfg.ChannelTokenTTL)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 60, cfg.RateLimit.Capacity)
	assert.Equal(t, time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, "user_or_ip", cfg.RateLimit.KeyStrategy)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadFromOverrides(t *testing.T) {
	env := baseEnv()
	env["HOLD_TTL"] = "120"
	env["REAPER_INTERVAL"] = "2s"
	env["PUBSUB_BACKEND"] = "AMQP"
	env["REDIS_HOST"] = "cache"
	env["REDIS_PORT"] = "6380"
	env["CACHE_ENABLED"] = "false"

	cfg, err := LoadFrom(lookupFrom(env))
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, cfg.HoldTTL)
	assert.Equal(t, 2*time.Second, cfg.ReaperInterval)
	assert.Equal(t, PubSubAMQP, cfg.PubSubBackend)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.False(t, cfg.Cache.Enabled)
}

func TestLoadFromReportsEveryProblem(t *testing.T) {
	env := baseEnv()
	delete(env, "JWT_SECRET")
	delete(env, "DB_HOST")
	env["REAPER_BATCH"] = "many"
	env["PUBSUB_BACKEND"] = "kafka"

	_, err := LoadFrom(lookupFrom(env))
	require.Error(t, err)
	for _, want := range []string{"JWT_SECRET", "DB_HOST", "REAPER_BATCH", "PUBSUB_BACKEND"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestMemoryStoreSkipsDatabaseVars(t *testing.T) {
	cfg, err := LoadFrom(lookupFrom(map[string]string{
		"APP_ENV":      "dev",
		"APP_PORT":     "8080",
		"JWT_SECRET":   "secret",
		"STORE_DRIVER": "memory",
	}))
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
}
