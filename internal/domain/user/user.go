package user

import (
	"time"

	"github.com/google/uuid"
)

// MembershipType is the tier a member signed up for; it fixes how many books they may hold
type MembershipType string

const (
	MembershipStudent MembershipType = "STUDENT"
	MembershipRegular MembershipType = "REGULAR"
	MembershipPremium MembershipType = "PREMIUM"
)

// MaxBooks returns the borrow limit implied by the tier
func (t MembershipType) MaxBooks() int {
	switch t {
	case MembershipStudent:
		return 3
	case MembershipPremium:
		return 10
	default:
		return 5
	}
}

// MembershipStatus is the current standing of a membership
type MembershipStatus string

const (
	StatusActive    MembershipStatus = "ACTIVE"
	StatusSuspended MembershipStatus = "SUSPENDED"
	StatusExpired   MembershipStatus = "EXPIRED"
)

// MembershipTerm is how long a new or renewed membership lasts
const MembershipTerm = 365 * 24 * time.Hour

// User represents a library member in the ledger
type User struct {
	ID                 uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	Name               string           `json:"name" gorm:"not null"`
	Email              string           `json:"email" gorm:"uniqueIndex;not null"`
	Phone              string           `json:"phone,omitempty" gorm:"size:10"`
	MembershipType     MembershipType   `json:"membershipType" gorm:"type:varchar(16);not null"`
	MembershipStatus   MembershipStatus `json:"membershipStatus" gorm:"type:varchar(16);not null"`
	JoinedDate         time.Time        `json:"joinedDate" gorm:"not null"`
	ExpiryDate         time.Time        `json:"expiryDate" gorm:"not null"`
	BorrowedBooksCount int              `json:"borrowedBooksCount" gorm:"not null;default:0;check:borrowed_books_count >= 0"`
	MaxBooksAllowed    int              `json:"maxBooksAllowed" gorm:"not null"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
}

// CreateUserRequest represents the request to register a member
type CreateUserRequest struct {
	Name           string         `json:"name" validate:"required,max=100"`
	Email          string         `json:"email" validate:"required,email"`
	Phone          string         `json:"phone,omitempty" validate:"omitempty,phone10"`
	MembershipType MembershipType `json:"membershipType" validate:"required,oneof=STUDENT REGULAR PREMIUM"`
}

// UpdateUserRequest carries the same fields as registration; all of them are replaced
type UpdateUserRequest = CreateUserRequest

// EligibilityResponse is the body of GET /api/users/:id/can-borrow
type EligibilityResponse struct {
	CanBorrow bool `json:"canBorrow"`
}

// NewUser creates an active member with a fresh one-year term and an empty borrow count
func NewUser(name, email, phone string, membershipType MembershipType, now time.Time) *User {
	return &User{
		ID:                 uuid.New(),
		Name:               name,
		Email:              email,
		Phone:              phone,
		MembershipType:     membershipType,
		MembershipStatus:   StatusActive,
		JoinedDate:         now,
		ExpiryDate:         now.Add(MembershipTerm),
		BorrowedBooksCount: 0,
		MaxBooksAllowed:    membershipType.MaxBooks(),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// IneligibilityReason explains why the member may not borrow one more book at now.
// An empty string means the member is eligible.
func (u *User) IneligibilityReason(now time.Time) string {
	switch {
	case u.MembershipStatus != StatusActive:
		return "membership is " + string(u.MembershipStatus)
	case !now.Before(u.ExpiryDate):
		return "membership expired on " + u.ExpiryDate.Format(time.RFC3339)
	case u.BorrowedBooksCount >= u.MaxBooksAllowed:
		return "maximum book limit reached"
	default:
		return ""
	}
}

// CanBorrow reports whether the member may borrow one more book at now
func (u *User) CanBorrow(now time.Time) bool {
	return u.IneligibilityReason(now) == ""
}
