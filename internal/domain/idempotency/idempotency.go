package idempotency

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyKey is a stored borrow/return response keyed by the client's Idempotency-Key header
type IdempotencyKey struct {
	Key          string    `json:"key" gorm:"primaryKey"`
	UserID       uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	RequestHash  string    `json:"request_hash" gorm:"not null"`
	ResponseData string    `json:"response_data"`
	StatusCode   int       `json:"status_code"`
	ProcessedAt  time.Time `json:"processed_at"`
	ExpiresAt    time.Time `json:"expires_at" gorm:"index"`
	CreatedAt    time.Time `json:"created_at"`
}

// Pending reports whether the key is claimed by a request that has not finished yet
func (k *IdempotencyKey) Pending() bool {
	return k.StatusCode == 0
}

// IsExpired reports whether the key should no longer be honoured at now
func (k *IdempotencyKey) IsExpired(now time.Time) bool {
	return !now.Before(k.ExpiresAt)
}
