// Package redis wraps go-redis with the operations the bridge needs to
// coordinate runs between processes.
package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"baserow-bridge/internal/common/errors"
)

// Release and extend only touch a lock whose value is still our token, so a
// process whose lock already expired cannot free or prolong someone else's.
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// KeyPrefix namespaces every lock key.
const KeyPrefix = "lock:"

// Client is a go-redis connection exposing token-checked lock operations.
type Client struct {
	rdb    *redis.Client
	config *Config
}

// Config holds Redis connection settings. Zero values fall back to defaults.
type Config struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// NewClient connects and pings the server.
func NewClient(ctx context.Context, config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.ConfigError("redis config is required")
	}

	if config.Address == "" {
		config.Address = "localhost:6379"
	}
	if config.PoolSize == 0 {
		config.PoolSize = 4
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.ConnectionError("failed to connect to Redis", err).WithContext("address", config.Address)
	}

	return &Client{
		rdb:    rdb,
		config: config,
	}, nil
}

// Close closes the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health pings the server.
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// AcquireLock sets key to token if it is free. It reports false when another
// holder owns the key.
func (c *Client) AcquireLock(ctx context.Context, key, token string, expiration time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, KeyPrefix+key, token, expiration).Result()
	if err != nil {
		return false, errors.ConnectionError("failed to acquire lock", err).WithContext("key", key)
	}
	return ok, nil
}

// ReleaseLock deletes key if it still holds token.
func (c *Client) ReleaseLock(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, c.rdb, []string{KeyPrefix + key}, token).Err(); err != nil {
		return errors.ConnectionError("failed to release lock", err).WithContext("key", key)
	}
	return nil
}

// ExtendLock resets the expiry of key if it still holds token. It reports
// false when the lock was lost.
func (c *Client) ExtendLock(ctx context.Context, key, token string, expiration time.Duration) (bool, error) {
	n, err := extendScript.Run(ctx, c.rdb, []string{KeyPrefix + key}, token, expiration.Milliseconds()).Int64()
	if err != nil {
		return false, errors.ConnectionError("failed to extend lock", err).WithContext("key", key)
	}
	return n == 1, nil
}
