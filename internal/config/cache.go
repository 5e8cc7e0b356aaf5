package config

import "time"

// CacheConfig controls the availability snapshot and seat map cache.  When
// Enabled is false nothing is cached and every read hits the store.
type CacheConfig struct {
	Enabled bool          // CACHE_ENABLED
	TTL     time.Duration // CACHE_TTL
	Prefix  string        // CACHE_PREFIX, namespaces the Redis keys
	Backend string        // CACHE_BACKEND: redis | memory
}

func loadCacheConfig(e *env) CacheConfig {
	c := CacheConfig{
		Enabled: e.boolean("CACHE_ENABLED", true),
		TTL:     e.duration("CACHE_TTL", 30*time.Second),
		Prefix:  e.str("CACHE_PREFIX", "bus"),
		Backend: e.oneOf("CACHE_BACKEND", "redis", "redis", "memory"),
	}
	if c.TTL <= 0 {
		c.TTL = 30 * time.Second
	}
	return c
}
