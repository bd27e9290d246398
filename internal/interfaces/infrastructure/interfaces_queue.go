package interfaces

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type LedgerOperation string

const (
	LedgerOperationBorrow LedgerOperation = "borrow"
	LedgerOperationReturn LedgerOperation = "return"
)

// LedgerSyncJob is a ledger update the catalog committed locally but could not deliver
type LedgerSyncJob struct {
	Operation LedgerOperation `json:"operation"`
	UserID    uuid.UUID       `json:"user_id"`
	ISBN      string          `json:"isbn"`
	Timestamp time.Time       `json:"timestamp"`
	Attempts  int             `json:"attempts"`
}

// LedgerSyncProcessor handles one dequeued job; a returned error means the job failed for good
type LedgerSyncProcessor interface {
	ProcessLedgerSync(ctx context.Context, job *LedgerSyncJob) error
}

type QueueService interface {
	EnqueueLedgerSync(ctx context.Context, job LedgerSyncJob) error
	DequeueLedgerSync(ctx context.Context) (*LedgerSyncJob, error)
	Length(ctx context.Context) (int64, error)
	SetProcessor(processor LedgerSyncProcessor)
	StartWorkers()
	StopWorkers()
}
