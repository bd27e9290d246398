package repository

import (
	"context"
	"sync"
	"time"

	domain "library-services/internal/domain/idempotency"
	interfaces "library-services/internal/interfaces/infrastructure"
)

var _ interfaces.IdempotencyRepository = (*MemoryIdempotencyRepository)(nil)

// MemoryIdempotencyRepository keeps idempotency keys in process memory.
// Keys are lost on restart; use the redis store when that matters.
type MemoryIdempotencyRepository struct {
	keys  map[string]*domain.IdempotencyKey
	mutex sync.Mutex
	now   func() time.Time
}

func NewMemoryIdempotencyRepository() *MemoryIdempotencyRepository {
	return &MemoryIdempotencyRepository{
		keys: make(map[string]*domain.IdempotencyKey),
		now:  time.Now,
	}
}

func (r *MemoryIdempotencyRepository) Reserve(ctx context.Context, key *domain.IdempotencyKey) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if existing, ok := r.keys[key.Key]; ok && !existing.IsExpired(r.now()) {
		return false, nil
	}
	stored := *key
	r.keys[key.Key] = &stored
	return true, nil
}

func (r *MemoryIdempotencyRepository) Create(ctx context.Context, key *domain.IdempotencyKey) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	stored := *key
	r.keys[key.Key] = &stored
	return nil
}

func (r *MemoryIdempotencyRepository) GetByKey(ctx context.Context, key string) (*domain.IdempotencyKey, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	k, ok := r.keys[key]
	if !ok {
		return nil, interfaces.ErrIdempotencyKeyNotFound
	}
	if k.IsExpired(r.now()) {
		delete(r.keys, key)
		return nil, interfaces.ErrIdempotencyKeyNotFound
	}
	out := *k
	return &out, nil
}

func (r *MemoryIdempotencyRepository) Delete(ctx context.Context, key string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.keys, key)
	return nil
}

func (r *MemoryIdempotencyRepository) DeleteExpired(ctx context.Context) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := r.now()
	for k, v := range r.keys {
		if v.IsExpired(now) {
			delete(r.keys, k)
		}
	}
	return nil
}
