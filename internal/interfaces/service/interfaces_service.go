package service

import (
	"context"

	"github.com/google/uuid"
)

// LedgerClient is the catalog's view of the user ledger. Errors carry an
// apperror kind: NotFound, Conflict and Validation are definitive answers from
// the ledger, RemoteUnavailable means the outcome is unknown.
type LedgerClient interface {
	CanBorrow(ctx context.Context, userID uuid.UUID) (bool, error)
	IncrementBorrowed(ctx context.Context, userID uuid.UUID) error
	DecrementBorrowed(ctx context.Context, userID uuid.UUID) error
}

// Resolver maps a logical service name to a base URL.
type Resolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}
