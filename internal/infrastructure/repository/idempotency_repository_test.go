package repository

import (
	"context"
	"testing"
	"time"

	domain "library-services/internal/domain/idempotency"
	interfaces "library-services/internal/interfaces/infrastructure"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIdempotencyRepositoryReserve(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	repo := NewMemoryIdempotencyRepository()
	repo.now = func() time.Time { return now }

	claim := &domain.IdempotencyKey{Key: "k", RequestHash: "h", ExpiresAt: now.Add(time.Minute)}
	ok, err := repo.Reserve(ctx, claim)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Reserve(ctx, claim)
	require.NoError(t, err)
	assert.False(t, ok, "live claim must not be taken twice")

	now = now.Add(2 * time.Minute)
	ok, err = repo.Reserve(ctx, claim)
	require.NoError(t, err)
	assert.True(t, ok, "expired claim can be taken again")
}

func TestMemoryIdempotencyRepositoryDeleteExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	repo := NewMemoryIdempotencyRepository()
	repo.now = func() time.Time { return now }

	require.NoError(t, repo.Create(ctx, &domain.IdempotencyKey{Key: "old", StatusCode: 200, ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, repo.Create(ctx, &domain.IdempotencyKey{Key: "new", StatusCode: 200, ExpiresAt: now.Add(time.Hour)}))

	now = now.Add(30 * time.Minute)
	require.NoError(t, repo.DeleteExpired(ctx))
	assert.Len(t, repo.keys, 1)

	_, err := repo.GetByKey(ctx, "old")
	assert.ErrorIs(t, err, interfaces.ErrIdempotencyKeyNotFound)
	kept, err := repo.GetByKey(ctx, "new")
	require.NoError(t, err)
	assert.False(t, kept.Pending())
}
