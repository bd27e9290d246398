package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	interfaces "library-services/internal/interfaces/infrastructure"
	"library-services/internal/observability/metrics"
	"library-services/pkg/logger"

	"github.com/go-redis/redis/v8"
)

const LedgerSyncQueueKey = "library:queue:ledger_sync"

// RedisQueue keeps pending ledger updates in a redis list so they survive a
// catalog restart.
type RedisQueue struct {
	*workerPool
	client redis.UniversalClient
}

func NewRedisQueue(client redis.UniversalClient, workers int) *RedisQueue {
	rq := &RedisQueue{client: client}
	rq.workerPool = &workerPool{
		name:    "redis",
		workers: workers,
		dequeue: rq.DequeueLedgerSync,
		length:  rq.Length,
	}
	return rq
}

func (rq *RedisQueue) EnqueueLedgerSync(ctx context.Context, job interfaces.LedgerSyncJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger sync job: %w", err)
	}

	n, err := rq.client.LPush(ctx, LedgerSyncQueueKey, data).Result()
	if err != nil {
		return fmt.Errorf("failed to enqueue ledger sync job: %w", err)
	}
	metrics.SetLedgerSyncQueueLength(n)

	logger.Debug("Enqueued ledger %s for user %s, book %s", job.Operation, job.UserID, job.ISBN)
	return nil
}

// DequeueLedgerSync blocks up to DefaultDequeueTimeout; a nil job means nothing arrived.
func (rq *RedisQueue) DequeueLedgerSync(ctx context.Context) (*interfaces.LedgerSyncJob, error) {
	result, err := rq.client.BRPop(ctx, DefaultDequeueTimeout, LedgerSyncQueueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue ledger sync job: %w", err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected Redis BRPOP result format")
	}

	var job interfaces.LedgerSyncJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ledger sync job: %w", err)
	}
	return &job, nil
}

func (rq *RedisQueue) Length(ctx context.Context) (int64, error) {
	return rq.client.LLen(ctx, LedgerSyncQueueKey).Result()
}

var _ interfaces.QueueService = (*RedisQueue)(nil)
