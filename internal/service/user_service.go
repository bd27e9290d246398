package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"library-services/internal/domain/user"
	"library-services/internal/infrastructure/repository"
	"library-services/pkg/apperror"
	"library-services/pkg/logger"

	"github.com/google/uuid"
)

// userService implements the UserService interface
type userService struct {
	userRepo user.UserRepository
	now      func() time.Time
}

// NewUserService creates a new user ledger service
func NewUserService(userRepo user.UserRepository) user.UserService {
	return NewUserServiceWithClock(userRepo, func() time.Time { return time.Now().UTC() })
}

// NewUserServiceWithClock is NewUserService with an injectable clock for
// expiry decisions.
func NewUserServiceWithClock(userRepo user.UserRepository, now func() time.Time) user.UserService {
	return &userService{
		userRepo: userRepo,
		now:      now,
	}
}

// CreateUser registers a member with an active one-year membership
func (s *userService) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	logger.Info("Creating user with email: %s", req.Email)

	existing, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, apperror.Conflict("user with email %s already exists", req.Email)
	}

	u := user.NewUser(req.Name, req.Email, req.Phone, req.MembershipType, s.now())
	if err := s.userRepo.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperror.Conflict("user with email %s already exists", req.Email)
		}
		logger.Error("Failed to create user: %v", err)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	logger.Info("User created successfully with ID: %s and membership type: %s", u.ID, u.MembershipType)
	return u, nil
}

// GetUser retrieves a user by ID
func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*user.User, error) {
	logger.Debug("Getting user with ID: %s", id)

	u, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		logger.Error("Failed to get user: %v", err)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if u == nil {
		return nil, apperror.NotFound("user not found with id: %s", id)
	}
	return u, nil
}

// GetUserByEmail retrieves a user by email
func (s *userService) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	logger.Debug("Getting user with email: %s", email)

	u, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		logger.Error("Failed to get user by email: %v", err)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if u == nil {
		return nil, apperror.NotFound("user not found with email: %s", email)
	}
	return u, nil
}

// UpdateUser replaces the profile fields. Changing tier re-derives the limit,
// which may not drop below the books the member already holds.
func (s *userService) UpdateUser(ctx context.Context, id uuid.UUID, req *user.UpdateUserRequest) (*user.User, error) {
	logger.Info("Updating user with ID: %s", id)

	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if u.Email != req.Email {
		other, err := s.userRepo.GetByEmail(ctx, req.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
		if other != nil {
			return nil, apperror.Conflict("email %s already exists", req.Email)
		}
	}

	newMax := req.MembershipType.MaxBooks()
	if newMax < u.BorrowedBooksCount {
		return nil, apperror.Conflict("user holds %d books, more than the %s limit of %d",
			u.BorrowedBooksCount, req.MembershipType, newMax)
	}

	u.Name = req.Name
	u.Email = req.Email
	u.Phone = req.Phone
	u.MembershipType = req.MembershipType
	u.MaxBooksAllowed = newMax

	return s.save(ctx, u)
}

// DeleteUser removes a user
func (s *userService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	logger.Info("Deleting user with ID: %s", id)

	u, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}

	if err := s.userRepo.Delete(ctx, id); err != nil {
		logger.Error("Failed to delete user: %v", err)
		return fmt.Errorf("failed to delete user: %w", err)
	}

	logger.Info("User deleted successfully: %s", u.Name)
	return nil
}

// ListUsers retrieves a page of users; limit <= 0 returns everyone
func (s *userService) ListUsers(ctx context.Context, limit, offset int) ([]*user.User, error) {
	logger.Debug("Listing users with limit: %d, offset: %d", limit, offset)

	users, err := s.userRepo.List(ctx, limit, offset)
	if err != nil {
		logger.Error("Failed to list users: %v", err)
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *userService) SuspendUser(ctx context.Context, id uuid.UUID) (*user.User, error) {
	logger.Info("Suspending user with ID: %s", id)
	return s.setStatus(ctx, id, user.StatusSuspended)
}

func (s *userService) ActivateUser(ctx context.Context, id uuid.UUID) (*user.User, error) {
	logger.Info("Activating user with ID: %s", id)
	return s.setStatus(ctx, id, user.StatusActive)
}

func (s *userService) setStatus(ctx context.Context, id uuid.UUID, status user.MembershipStatus) (*user.User, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	u.MembershipStatus = status
	return s.save(ctx, u)
}

// RenewMembership extends the term by one year from now and reactivates an
// expired membership. A suspended member stays suspended.
func (s *userService) RenewMembership(ctx context.Context, id uuid.UUID) (*user.User, error) {
	logger.Info("Renewing membership for user ID: %s", id)

	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	u.ExpiryDate = s.now().Add(user.MembershipTerm)
	if u.MembershipStatus == user.StatusExpired {
		u.MembershipStatus = user.StatusActive
	}
	return s.save(ctx, u)
}

func (s *userService) save(ctx context.Context, u *user.User) (*user.User, error) {
	u.UpdatedAt = s.now()
	if err := s.userRepo.Update(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperror.Conflict("email %s already exists", u.Email)
		}
		logger.Error("Failed to update user: %v", err)
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return s.GetUser(ctx, u.ID)
}

// CanBorrow reports eligibility for one more book. It never mutates state.
func (s *userService) CanBorrow(ctx context.Context, id uuid.UUID) (bool, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return false, err
	}

	if reason := u.IneligibilityReason(s.now()); reason != "" {
		logger.Warn("User %s cannot borrow: %s (%d/%d)", u.ID, reason, u.BorrowedBooksCount, u.MaxBooksAllowed)
		return false, nil
	}
	return true, nil
}

// IncrementBorrowed records one more borrowed book. The eligibility check and
// the increment happen in a single conditional update, so concurrent calls
// cannot push the count past the limit.
func (s *userService) IncrementBorrowed(ctx context.Context, id uuid.UUID) (*user.User, error) {
	logger.Info("Incrementing borrowed books for user ID: %s", id)

	now := s.now()
	ok, err := s.userRepo.IncrementBorrowed(ctx, id, now)
	if err != nil {
		logger.Error("Failed to increment borrowed count: %v", err)
		return nil, fmt.Errorf("failed to increment borrowed count: %w", err)
	}

	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		reason := u.IneligibilityReason(now)
		if reason == "" {
			reason = "user is not eligible to borrow"
		}
		return nil, apperror.Conflict("%s", reason)
	}

	logger.Info("User %s now has %d books borrowed", u.Name, u.BorrowedBooksCount)
	return u, nil
}

// DecrementBorrowed records a returned book. At zero it is a no-op.
func (s *userService) DecrementBorrowed(ctx context.Context, id uuid.UUID) (*user.User, error) {
	logger.Info("Decrementing borrowed books for user ID: %s", id)

	if _, err := s.GetUser(ctx, id); err != nil {
		return nil, err
	}

	ok, err := s.userRepo.DecrementBorrowed(ctx, id)
	if err != nil {
		logger.Error("Failed to decrement borrowed count: %v", err)
		return nil, fmt.Errorf("failed to decrement borrowed count: %w", err)
	}
	if !ok {
		logger.Warn("User %s has no borrowed books to return", id)
	}

	return s.GetUser(ctx, id)
}
