package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "library-services/internal/domain/idempotency"
	interfaces "library-services/internal/interfaces/infrastructure"
	"library-services/pkg/apperror"
	"library-services/pkg/logger"

	"github.com/google/uuid"
)

const (
	DefaultIdempotencyTTL             = 24 * time.Hour
	DefaultIdempotencyCleanupInterval = 10 * time.Minute

	// a claim outlives a crashed request by at most this long
	pendingIdempotencyTTL = time.Minute
)

// IdempotencyService remembers borrow/return responses by Idempotency-Key so a
// retried request is answered without touching stock or the ledger again.
type IdempotencyService struct {
	idempotencyRepo interfaces.IdempotencyRepository
	ttl             time.Duration
	pendingTTL      time.Duration
	now             func() time.Time
}

func NewIdempotencyService(idempotencyRepo interfaces.IdempotencyRepository, ttl time.Duration) *IdempotencyService {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotencyService{
		idempotencyRepo: idempotencyRepo,
		ttl:             ttl,
		pendingTTL:      pendingIdempotencyTTL,
		now:             time.Now,
	}
}

// BeginRequest claims key for one borrow/return. When the same request
// already completed under key its stored response is returned with
// duplicate=true. A key still held by an unfinished request, or used for a
// different request, is a Conflict.
func (s *IdempotencyService) BeginRequest(ctx context.Context, key string, userID uuid.UUID, requestData any) (*domain.IdempotencyKey, bool, error) {
	if key == "" {
		return nil, false, nil
	}

	hash := s.generateRequestHash(userID, requestData)
	for attempt := 0; attempt < 2; attempt++ {
		now := s.now()
		claimed, err := s.idempotencyRepo.Reserve(ctx, &domain.IdempotencyKey{
			Key:         key,
			UserID:      userID,
			RequestHash: hash,
			ExpiresAt:   now.Add(s.pendingTTL),
			CreatedAt:   now,
		})
		if err != nil {
			logger.Error("Failed to claim idempotency key %s: %v", key, err)
			return nil, false, fmt.Errorf("failed to claim idempotency key: %w", err)
		}
		if claimed {
			return nil, false, nil
		}

		existing, err := s.idempotencyRepo.GetByKey(ctx, key)
		if errors.Is(err, interfaces.ErrIdempotencyKeyNotFound) {
			// released or expired since the claim attempt
			continue
		}
		if err != nil {
			logger.Error("Failed to check idempotency key: %v", err)
			return nil, false, fmt.Errorf("failed to check idempotency key: %w", err)
		}
		if existing.IsExpired(s.now()) {
			if err := s.idempotencyRepo.Delete(ctx, key); err != nil {
				logger.Warn("Failed to delete expired idempotency key %s: %v", key, err)
			}
			continue
		}

		if existing.RequestHash != hash {
			logger.Warn("Idempotency key %s used with different request data", key)
			return nil, false, apperror.Conflict("idempotency key %s was already used for a different request", key)
		}
		if existing.Pending() {
			return nil, false, apperror.Conflict("a request with idempotency key %s is still in progress", key)
		}

		logger.Info("Duplicate request detected for idempotency key: %s", key)
		return existing, true, nil
	}

	return nil, false, apperror.Conflict("idempotency key %s is being reused concurrently", key)
}

// ReleaseRequest drops the claim taken by BeginRequest so the client may retry
func (s *IdempotencyService) ReleaseRequest(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.idempotencyRepo.Delete(ctx, key); err != nil {
		logger.Warn("Failed to release idempotency key %s: %v", key, err)
	}
}

func (s *IdempotencyService) StoreProcessedRequest(ctx context.Context, key string, userID uuid.UUID, requestData any, responseData any, statusCode int) error {
	if key == "" {
		return nil
	}

	responseJSON, err := json.Marshal(responseData)
	if err != nil {
		logger.Error("Failed to marshal response data for idempotency key %s: %v", key, err)
		return fmt.Errorf("failed to marshal response data: %w", err)
	}

	now := s.now()
	idempotencyKey := &domain.IdempotencyKey{
		Key:          key,
		UserID:       userID,
		RequestHash:  s.generateRequestHash(userID, requestData),
		ResponseData: string(responseJSON),
		StatusCode:   statusCode,
		ProcessedAt:  now,
		ExpiresAt:    now.Add(s.ttl),
		CreatedAt:    now,
	}

	if err := s.idempotencyRepo.Create(ctx, idempotencyKey); err != nil {
		logger.Error("Failed to store idempotency key %s: %v", key, err)
		return fmt.Errorf("failed to store idempotency key: %w", err)
	}

	logger.Debug("Stored idempotency key: %s", key)
	return nil
}

func (s *IdempotencyService) CleanupExpiredKeys(ctx context.Context) error {
	if err := s.idempotencyRepo.DeleteExpired(ctx); err != nil {
		logger.Error("Failed to cleanup expired idempotency keys: %v", err)
		return fmt.Errorf("failed to cleanup expired keys: %w", err)
	}
	return nil
}

// RunCleanup removes expired keys every interval until ctx is done
func (s *IdempotencyService) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultIdempotencyCleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.CleanupExpiredKeys(ctx)
		}
	}
}

func (s *IdempotencyService) generateRequestHash(userID uuid.UUID, requestData any) string {
	data := map[string]any{
		"user_id":      userID.String(),
		"request_data": requestData,
	}

	jsonData, _ := json.Marshal(data)
	hash := sha256.Sum256(jsonData)
	return hex.EncodeToString(hash[:])
}
