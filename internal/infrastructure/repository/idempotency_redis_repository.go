package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "library-services/internal/domain/idempotency"
	interfaces "library-services/internal/interfaces/infrastructure"

	"github.com/go-redis/redis/v8"
)

var _ interfaces.IdempotencyRepository = (*RedisIdempotencyRepository)(nil)

type RedisIdempotencyRepository struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisIdempotencyRepository(client redis.UniversalClient) *RedisIdempotencyRepository {
	return &RedisIdempotencyRepository{
		client: client,
		prefix: "library:idempotency_key:",
	}
}

// Reserve claims the key with SETNX so only one in-flight request owns it.
func (r *RedisIdempotencyRepository) Reserve(ctx context.Context, key *domain.IdempotencyKey) (bool, error) {
	ttl := time.Until(key.ExpiresAt)
	if ttl <= 0 {
		return false, fmt.Errorf("idempotency key %s already expired", key.Key)
	}

	data, err := json.Marshal(key)
	if err != nil {
		return false, fmt.Errorf("failed to marshal idempotency key: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.getRedisKey(key.Key), string(data), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve idempotency key in Redis: %w", err)
	}
	return ok, nil
}

// Create stores the key until its ExpiresAt; redis drops it afterwards.
func (r *RedisIdempotencyRepository) Create(ctx context.Context, key *domain.IdempotencyKey) error {
	ttl := time.Until(key.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(key)
	if err != nil {
		return fmt.Errorf("failed to marshal idempotency key: %w", err)
	}

	if err := r.client.Set(ctx, r.getRedisKey(key.Key), string(data), ttl).Err(); err != nil {
		return fmt.Errorf("failed to store idempotency key in Redis: %w", err)
	}
	return nil
}

func (r *RedisIdempotencyRepository) GetByKey(ctx context.Context, key string) (*domain.IdempotencyKey, error) {
	val, err := r.client.Get(ctx, r.getRedisKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, interfaces.ErrIdempotencyKeyNotFound
		}
		return nil, fmt.Errorf("failed to get idempotency key from Redis: %w", err)
	}

	var idempotencyKey domain.IdempotencyKey
	if err := json.Unmarshal([]byte(val), &idempotencyKey); err != nil {
		return nil, fmt.Errorf("failed to unmarshal idempotency key: %w", err)
	}
	return &idempotencyKey, nil
}

func (r *RedisIdempotencyRepository) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.getRedisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete idempotency key from Redis: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op: redis expires keys on its own.
func (r *RedisIdempotencyRepository) DeleteExpired(ctx context.Context) error {
	return nil
}

func (r *RedisIdempotencyRepository) getRedisKey(key string) string {
	return r.prefix + key
}
