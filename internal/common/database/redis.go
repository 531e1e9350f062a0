// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"

	"job-board/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the shared connection behind the Keycloak token cache,
// pending sign-in state and the filter-options cache. Every caller treats
// Redis as a cache: a failed call falls back to the source of truth, so the
// read and write timeouts are kept short.
type RedisClient struct {
	Client *redis.Client
}

func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  config.GetDuration(cfg.DialTimeout),
		ReadTimeout:  config.GetDuration(cfg.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.WriteTimeout),
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdle,
	})
	return &RedisClient{Client: rdb}, nil
}

// Ping is the readiness check for the caches.
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}
