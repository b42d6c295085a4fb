package cache

import (
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOption adjusts the redis client options and key prefix.
type RedisOption func(*redisSettings)

type redisSettings struct {
	opts        redis.Options
	prefix      string
	pingTimeout time.Duration
}

// WithRedisAddr sets host and port.
func WithRedisAddr(host string, port int) RedisOption {
	return func(s *redisSettings) {
		s.opts.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	}
}

// WithRedisAuth sets the password and logical database.
func WithRedisAuth(password string, db int) RedisOption {
	return func(s *redisSettings) {
		s.opts.Password = password
		s.opts.DB = db
	}
}

func WithRedisPool(size, minIdle int, timeout time.Duration) RedisOption {
	return func(s *redisSettings) {
		s.opts.PoolSize = size
		s.opts.MinIdleConns = minIdle
		s.opts.PoolTimeout = timeout
	}
}

// WithRedisPrefix namespaces every key, so several deployments can share
// one instance.
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *redisSettings) {
		s.prefix = prefix
	}
}

func WithRedisPingTimeout(d time.Duration) RedisOption {
	return func(s *redisSettings) {
		if d > 0 {
			s.pingTimeout = d
		}
	}
}

// MemoryOption configures Memory cache.
type MemoryOption func(*MemoryConfig)

// MemoryConfig holds memory cache configuration.
type MemoryConfig struct {
	MaxSize         int
	CleanupInterval time.Duration
}

// WithMemoryMaxSize sets max cache size.
func WithMemoryMaxSize(size int) MemoryOption {
	return func(c *MemoryConfig) {
		if size > 0 {
			c.MaxSize = size
		}
	}
}

// WithMemoryCleanup sets cleanup interval.
func WithMemoryCleanup(interval time.Duration) MemoryOption {
	return func(c *MemoryConfig) {
		if interval > 0 {
			c.CleanupInterval = interval
		}
	}
}

// LayeredOption configures Layered cache.
type LayeredOption func(*LayeredConfig)

// LayeredConfig holds layered cache configuration.
type LayeredConfig struct {
	PromoteTTL time.Duration
}

// WithPromoteTTL sets how long an L2 hit stays in L1.
func WithPromoteTTL(ttl time.Duration) LayeredOption {
	return func(c *LayeredConfig) {
		if ttl > 0 {
			c.PromoteTTL = ttl
		}
	}
}
