package service

import (
	"context"
	"errors"
	"fmt"

	"library-services/internal/domain/book"
	interfaces "library-services/internal/interfaces/infrastructure"
	serviceInterfaces "library-services/internal/interfaces/service"
	"library-services/internal/observability/metrics"
	"library-services/internal/reliability/retry"
	"library-services/pkg/apperror"
	"library-services/pkg/logger"

	"github.com/sirupsen/logrus"
)

// LedgerSyncService delivers ledger updates the catalog queued in outbox mode.
// Each job is retried with backoff while the ledger is unreachable; a job that
// still fails is requeued until maxAttempts deliveries have been tried.
type LedgerSyncService struct {
	ledger      serviceInterfaces.LedgerClient
	bookRepo    book.BookRepository
	queue       interfaces.QueueService
	retryCfg    *retry.Config
	maxAttempts int
}

var _ interfaces.LedgerSyncProcessor = (*LedgerSyncService)(nil)

func NewLedgerSyncService(
	ledger serviceInterfaces.LedgerClient,
	bookRepo book.BookRepository,
	queue interfaces.QueueService,
	retryCfg retry.Config,
	maxAttempts int,
) *LedgerSyncService {
	retryCfg.ShouldRetry = func(err error) bool {
		return errors.Is(err, apperror.ErrRemoteUnavailable)
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &LedgerSyncService{
		ledger:      ledger,
		bookRepo:    bookRepo,
		queue:       queue,
		retryCfg:    &retryCfg,
		maxAttempts: maxAttempts,
	}
}

func (s *LedgerSyncService) ProcessLedgerSync(ctx context.Context, job *interfaces.LedgerSyncJob) error {
	log := logger.WithFields(logrus.Fields{
		"operation": job.Operation,
		"user_id":   job.UserID,
		"isbn":      job.ISBN,
		"attempt":   job.Attempts + 1,
	})

	_, err := retry.Do(ctx, s.retryCfg, log, "ledger_"+string(job.Operation), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.deliver(ctx, job)
	})

	switch {
	case err == nil:
		metrics.ObserveLedgerSyncJob(metrics.ResultSuccess)
		log.Info("Queued ledger update delivered")
		return nil

	case !errors.Is(err, apperror.ErrRemoteUnavailable):
		// the ledger refused the change, so the stock change it belonged to is undone
		if rerr := revertStock(ctx, s.bookRepo, job.Operation, job.ISBN); rerr != nil {
			metrics.ObserveLedgerSyncJob(metrics.ResultDropped)
			return fmt.Errorf("ledger rejected %s (%v) and undoing it failed: %w", job.Operation, err, rerr)
		}
		metrics.ObserveLedgerSyncJob(metrics.ResultReverted)
		log.Warnf("Ledger rejected queued update, stock change undone: %v", err)
		return nil
	}

	job.Attempts++
	if job.Attempts < s.maxAttempts {
		qerr := s.queue.EnqueueLedgerSync(ctx, *job)
		if qerr == nil {
			metrics.ObserveLedgerSyncJob(metrics.ResultRetried)
			log.Warnf("Ledger still unavailable, job requeued: %v", err)
			return nil
		}
		log.Errorf("Failed to requeue ledger update: %v", qerr)
	}

	metrics.ObserveLedgerSyncJob(metrics.ResultDropped)
	return fmt.Errorf("giving up on ledger %s for user %s after %d deliveries: %w",
		job.Operation, job.UserID, job.Attempts, err)
}

func (s *LedgerSyncService) deliver(ctx context.Context, job *interfaces.LedgerSyncJob) error {
	switch job.Operation {
	case interfaces.LedgerOperationBorrow:
		return s.ledger.IncrementBorrowed(ctx, job.UserID)
	case interfaces.LedgerOperationReturn:
		return s.ledger.DecrementBorrowed(ctx, job.UserID)
	default:
		return apperror.Validation("unknown ledger operation %q", job.Operation)
	}
}
