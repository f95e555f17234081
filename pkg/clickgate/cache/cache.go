// Package cache creates the optional redis client used for geo lookup
// caching and rate-limit counters.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clickgate/clickgate/pkg/clickgate/config"
)

// NewClient connects to redis and verifies the connection with a ping.
// Returns (nil, nil) when no cache host is configured; callers treat a nil
// client as "run without redis".
func NewClient(cfg config.Cache) (*redis.Client, error) {
	if cfg.Host == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: 20,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	return client, nil
}
