package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	interfaces "library-services/internal/interfaces/infrastructure"
	"library-services/internal/observability/metrics"
	"library-services/pkg/logger"
)

const (
	DefaultDequeueTimeout = 2 * time.Second
	DefaultJobTimeout     = 30 * time.Second
)

// workerPool runs the dequeue/process loop shared by the queue backends
type workerPool struct {
	name    string
	workers int
	dequeue func(ctx context.Context) (*interfaces.LedgerSyncJob, error)
	length  func(ctx context.Context) (int64, error)

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.RWMutex

	processor interfaces.LedgerSyncProcessor
}

func (p *workerPool) SetProcessor(processor interfaces.LedgerSyncProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processor = processor
}

func (p *workerPool) StartWorkers() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}
	if p.processor == nil {
		logger.Warn("Ledger sync processor not set, %s workers cannot process jobs", p.name)
		return
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())
	logger.Info("Starting %d %s ledger sync workers", p.workers, p.name)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.ledgerSyncWorker(i)
	}
	p.started = true
}

func (p *workerPool) StopWorkers() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	logger.Info("Stopping %s ledger sync workers...", p.name)
	p.cancel()
	p.wg.Wait()
	p.started = false
	logger.Info("%s ledger sync workers stopped", p.name)
}

func (p *workerPool) ledgerSyncWorker(workerID int) {
	defer p.wg.Done()

	logger.Debug("Ledger sync worker %d started", workerID)

	for {
		select {
		case <-p.ctx.Done():
			logger.Debug("Ledger sync worker %d stopped", workerID)
			return
		default:
		}

		ctx, cancel := context.WithTimeout(p.ctx, DefaultDequeueTimeout)
		job, err := p.dequeue(ctx)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				continue
			}
			logger.Error("Ledger sync worker %d error: %v", workerID, err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if job == nil {
			continue
		}

		p.process(workerID, job)
	}
}

func (p *workerPool) process(workerID int, job *interfaces.LedgerSyncJob) {
	logger.Info("Worker %d delivering %s of %s for user %s (attempt %d)",
		workerID, job.Operation, job.ISBN, job.UserID, job.Attempts+1)

	ctx, cancel := context.WithTimeout(p.ctx, DefaultJobTimeout)
	defer cancel()

	if err := p.processor.ProcessLedgerSync(ctx, job); err != nil {
		logger.Error("Worker %d failed to deliver ledger %s for user %s: %v", workerID, job.Operation, job.UserID, err)
	}

	if n, err := p.length(ctx); err == nil {
		metrics.SetLedgerSyncQueueLength(n)
	}
}
