package cache

import (
	"context"
	"fmt"
	"time"

	"library-services/internal/config"

	"github.com/go-redis/redis/v8"
)

// NewRedisClient builds the client shared by the idempotency store and the
// ledger sync queue.
func NewRedisClient(cfg *config.CacheConfig) redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: 5 * time.Second,
	})
}

// HealthCheck pings redis with a short deadline
func HealthCheck(ctx context.Context, client redis.UniversalClient) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
