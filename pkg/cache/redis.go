package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements Service on Redis so that several batch processes
// can share one market snapshot.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects and pings. An unreachable server is an error here
// rather than on the first lookup.
func NewRedisCache(opts ...RedisOption) (*RedisCache, error) {
	s := &redisSettings{
		opts: redis.Options{
			Addr:         "localhost:6379",
			PoolSize:     10,
			MinIdleConns: 2,
			PoolTimeout:  30 * time.Second,
		},
		prefix:      "newsdesk",
		pingTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	client := redis.NewClient(&s.opts)

	ctx, cancel := context.WithTimeout(context.Background(), s.pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", s.opts.Addr, err)
	}

	return &RedisCache{client: client, prefix: s.prefix}, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return c.client.Set(ctx, c.key(key), data, expiration).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return ErrCacheMiss
	case err != nil:
		return err
	}
	return json.Unmarshal(data, dest)
}

// Delete uses UNLINK so large snapshots are freed off the main thread.
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, c.key(k))
	}
	return c.client.Unlink(ctx, full...).Err()
}

func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(key)).Result()
	return n > 0, err
}

func (c *RedisCache) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}
