package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	interfaces "library-services/internal/interfaces/infrastructure"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProcessor struct {
	mu   sync.Mutex
	jobs []interfaces.LedgerSyncJob
	done chan struct{}
}

func (p *recordingProcessor) ProcessLedgerSync(ctx context.Context, job *interfaces.LedgerSyncJob) error {
	p.mu.Lock()
	p.jobs = append(p.jobs, *job)
	p.mu.Unlock()
	p.done <- struct{}{}
	return nil
}

func TestInMemoryQueueRejectsWhenFull(t *testing.T) {
	q := NewInMemoryQueue(1, 1)
	ctx := context.Background()

	require.NoError(t, q.EnqueueLedgerSync(ctx, interfaces.LedgerSyncJob{Operation: interfaces.LedgerOperationBorrow}))
	assert.Error(t, q.EnqueueLedgerSync(ctx, interfaces.LedgerSyncJob{Operation: interfaces.LedgerOperationReturn}))

	n, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestInMemoryQueueWorkersDeliverJobs(t *testing.T) {
	q := NewInMemoryQueue(10, 2)
	p := &recordingProcessor{done: make(chan struct{}, 10)}
	q.SetProcessor(p)
	q.StartWorkers()
	defer q.StopWorkers()

	userID := uuid.New()
	require.NoError(t, q.EnqueueLedgerSync(context.Background(), interfaces.LedgerSyncJob{
		Operation: interfaces.LedgerOperationBorrow,
		UserID:    userID,
		ISBN:      "978-1",
		Timestamp: time.Now(),
	}))

	select {
	case <-p.done:
	case <-time.After(3 * time.Second):
		t.Fatal("job was not processed")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	require.Len(t, p.jobs, 1)
	assert.Equal(t, userID, p.jobs[0].UserID)
	assert.Equal(t, "978-1", p.jobs[0].ISBN)
}

func TestStartWithoutProcessorIsNoop(t *testing.T) {
	q := NewInMemoryQueue(1, 1)
	q.StartWorkers()
	q.StopWorkers()
}
