package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"library-services/internal/domain/user"

	"github.com/google/uuid"
)

var ErrDuplicateEmail = errors.New("email already exists")

// memoryUserRepository is an in-memory implementation of UserRepository.
// Stored values are copied on the way in and out so callers never share state.
type memoryUserRepository struct {
	users map[uuid.UUID]*user.User
	mutex sync.RWMutex
}

// NewMemoryUserRepository creates an empty in-memory user repository
func NewMemoryUserRepository() user.UserRepository {
	return &memoryUserRepository{
		users: make(map[uuid.UUID]*user.User),
	}
}

func (r *memoryUserRepository) Create(ctx context.Context, u *user.User) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.users[u.ID]; exists {
		return errors.New("user already exists")
	}
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return ErrDuplicateEmail
		}
	}

	stored := *u
	r.users[u.ID] = &stored
	return nil
}

func (r *memoryUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	u, exists := r.users[id]
	if !exists {
		return nil, nil
	}
	out := *u
	return &out, nil
}

func (r *memoryUserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, u := range r.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, nil
}

func (r *memoryUserRepository) Update(ctx context.Context, u *user.User) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	existing, exists := r.users[u.ID]
	if !exists {
		return nil
	}
	for id, other := range r.users {
		if id != u.ID && other.Email == u.Email {
			return ErrDuplicateEmail
		}
	}

	stored := *u
	stored.BorrowedBooksCount = existing.BorrowedBooksCount
	stored.CreatedAt = existing.CreatedAt
	r.users[u.ID] = &stored
	return nil
}

func (r *memoryUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.users, id)
	return nil
}

func (r *memoryUserRepository) List(ctx context.Context, limit, offset int) ([]*user.User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	all := make([]*user.User, 0, len(r.users))
	for _, u := range r.users {
		out := *u
		all = append(all, &out)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID.String() < all[j].ID.String()
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	if limit <= 0 {
		return all, nil
	}
	if offset >= len(all) {
		return []*user.User{}, nil
	}
	end := len(all)
	if limit < end-offset {
		end = offset + limit
	}
	return all[offset:end], nil
}

func (r *memoryUserRepository) IncrementBorrowed(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	u, exists := r.users[id]
	if !exists || !u.CanBorrow(now) {
		return false, nil
	}
	u.BorrowedBooksCount++
	u.UpdatedAt = now
	return true, nil
}

func (r *memoryUserRepository) DecrementBorrowed(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	u, exists := r.users[id]
	if !exists || u.BorrowedBooksCount <= 0 {
		return false, nil
	}
	u.BorrowedBooksCount--
	u.UpdatedAt = time.Now().UTC()
	return true, nil
}
