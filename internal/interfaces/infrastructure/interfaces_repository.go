package interfaces

import (
	"context"
	"errors"

	domain "library-services/internal/domain/idempotency"
)

var ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")

// IdempotencyRepository stores replayable responses. GetByKey returns
// ErrIdempotencyKeyNotFound when the key is unknown or has expired.
type IdempotencyRepository interface {
	// Reserve stores key only when no live entry exists for key.Key and
	// reports whether it did.
	Reserve(ctx context.Context, key *domain.IdempotencyKey) (bool, error)
	// Create stores key, replacing any entry with the same Key.
	Create(ctx context.Context, key *domain.IdempotencyKey) error
	GetByKey(ctx context.Context, key string) (*domain.IdempotencyKey, error)
	Delete(ctx context.Context, key string) error
	DeleteExpired(ctx context.Context) error
}
