package config

import "time"

// RateLimitConfig configures the Redis token bucket guarding the
// availability endpoints.  Each key starts with Capacity tokens and gains
// RefillTokens every RefillInterval.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string // user_or_ip | ip | user | ip_route
	Prefix         string
}

func loadRateLimitConfig(e *env) RateLimitConfig {
	c := RateLimitConfig{
		Enabled:        e.boolean("RATE_LIMIT_ENABLED", true),
		Capacity:       e.integer("RATE_LIMIT_CAPACITY", 60),
		RefillTokens:   e.integer("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: e.duration("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            e.duration("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    e.oneOf("RATE_LIMIT_KEY_STRATEGY", "user_or_ip", "user_or_ip", "ip", "user", "ip_route"),
		Prefix:         e.str("RATE_LIMIT_PREFIX", "rl"),
	}
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
		c.TTL = minTTL
	}
	return c
}
