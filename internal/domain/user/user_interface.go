package user

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserRepository defines the interface for user data access.
// Lookups return (nil, nil) when nothing matches.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*User, error)

	// IncrementBorrowed adds one to the borrowed count only if the member is
	// active, unexpired at now and below the limit, in a single statement.
	// It reports whether a row was changed.
	IncrementBorrowed(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	// DecrementBorrowed subtracts one only if the count is above zero.
	DecrementBorrowed(ctx context.Context, id uuid.UUID) (bool, error)
}

// UserService defines the interface for ledger business logic
type UserService interface {
	CreateUser(ctx context.Context, req *CreateUserRequest) (*User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, req *UpdateUserRequest) (*User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	ListUsers(ctx context.Context, limit, offset int) ([]*User, error)

	SuspendUser(ctx context.Context, id uuid.UUID) (*User, error)
	ActivateUser(ctx context.Context, id uuid.UUID) (*User, error)
	RenewMembership(ctx context.Context, id uuid.UUID) (*User, error)

	CanBorrow(ctx context.Context, id uuid.UUID) (bool, error)
	IncrementBorrowed(ctx context.Context, id uuid.UUID) (*User, error)
	DecrementBorrowed(ctx context.Context, id uuid.UUID) (*User, error)
}
