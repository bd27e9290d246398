package queue

import (
	"context"
	"fmt"

	interfaces "library-services/internal/interfaces/infrastructure"
	"library-services/internal/observability/metrics"
)

// Queue is the in-process ledger sync queue. Pending jobs are lost on restart.
type Queue struct {
	*workerPool
	ledgerSyncQueue chan interfaces.LedgerSyncJob
}

func NewInMemoryQueue(bufferSize, workers int) *Queue {
	q := &Queue{
		ledgerSyncQueue: make(chan interfaces.LedgerSyncJob, bufferSize),
	}
	q.workerPool = &workerPool{
		name:    "in-memory",
		workers: workers,
		dequeue: q.DequeueLedgerSync,
		length:  q.Length,
	}
	return q
}

func (q *Queue) EnqueueLedgerSync(ctx context.Context, job interfaces.LedgerSyncJob) error {
	select {
	case q.ledgerSyncQueue <- job:
		metrics.SetLedgerSyncQueueLength(int64(len(q.ledgerSyncQueue)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("ledger sync queue is full")
	}
}

func (q *Queue) DequeueLedgerSync(ctx context.Context) (*interfaces.LedgerSyncJob, error) {
	select {
	case job := <-q.ledgerSyncQueue:
		return &job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *Queue) Length(ctx context.Context) (int64, error) {
	return int64(len(q.ledgerSyncQueue)), nil
}

var _ interfaces.QueueService = (*Queue)(nil)
