package repository

import (
	"context"
	"errors"
	"time"

	"library-services/internal/domain/user"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRepository implements user.UserRepository using GORM
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new GORM user repository
func NewUserRepository(db *gorm.DB) user.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	return translateUserError(r.db.WithContext(ctx).Create(u).Error)
}

func translateUserError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	var u user.User
	err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	var u user.User
	err := r.db.WithContext(ctx).First(&u, "email = ?", email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// Update writes the profile and membership fields. borrowed_books_count is
// left alone so it only ever moves through the atomic counters.
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	err := r.db.WithContext(ctx).Model(&user.User{}).
		Where("id = ?", u.ID).
		Updates(map[string]interface{}{
			"name":              u.Name,
			"email":             u.Email,
			"phone":             u.Phone,
			"membership_type":   u.MembershipType,
			"membership_status": u.MembershipStatus,
			"expiry_date":       u.ExpiryDate,
			"max_books_allowed": u.MaxBooksAllowed,
			"updated_at":        u.UpdatedAt,
		}).Error
	return translateUserError(err)
}

func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&user.User{}, "id = ?", id).Error
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*user.User, error) {
	var users []*user.User
	q := r.db.WithContext(ctx).Order("created_at, id")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) IncrementBorrowed(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&user.User{}).
		Where("id = ? AND membership_status = ? AND expiry_date > ? AND borrowed_books_count < max_books_allowed",
			id, user.StatusActive, now).
		Updates(map[string]interface{}{
			"borrowed_books_count": gorm.Expr("borrowed_books_count + 1"),
			"updated_at":           now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *UserRepository) DecrementBorrowed(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&user.User{}).
		Where("id = ? AND borrowed_books_count > 0", id).
		Updates(map[string]interface{}{
			"borrowed_books_count": gorm.Expr("borrowed_books_count - 1"),
			"updated_at":           time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
