package config

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the connection settings of the shared Redis instance
// used for caching, rate limiting and the redis pub/sub backend.
type RedisConfig struct {
	Addr     string // REDIS_ADDR, or REDIS_HOST + REDIS_PORT
	Password string // REDIS_PASSWORD
	DB       int    // REDIS_DB
	TLS      bool   // REDIS_TLS
}

func loadRedisConfig(e *env) RedisConfig {
	addr := e.str("REDIS_ADDR", "localhost:6379")
	if host, port := e.str("REDIS_HOST", ""), e.str("REDIS_PORT", ""); host != "" && port != "" {
		addr = host + ":" + port
	}
	return RedisConfig{
		Addr:     addr,
		Password: e.str("REDIS_PASSWORD", ""),
		DB:       e.integer("REDIS_DB", 0),
		TLS:      e.boolean("REDIS_TLS", false),
	}
}

// NewRedisClient connects to Redis and pings it with a short timeout.  It
// returns nil when the server is unreachable; callers degrade by falling
// back to in-memory caching and disabling rate limiting.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	var tlsConf *tls.Config
	if cfg.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      cfg.Addr,
		Password:  cfg.Password,
		DB:        cfg.DB,
		TLSConfig: tlsConf,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
