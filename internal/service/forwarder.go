package service

import (
	"context"
	"sync"
	"time"

	"github.com/sachin12054/ai-expense-ledger-go/internal/domain"
	"github.com/sachin12054/ai-expense-ledger-go/internal/infra/observability"
	"github.com/sachin12054/ai-expense-ledger-go/internal/port"

	"go.uber.org/zap"
)

const (
	syncKindExpense = "expense"
	syncKindBalance = "balance"
)

// syncJob is one pending forward to the insights backend.
type syncJob struct {
	kind      string
	record    *domain.ExpenseRecord
	accountID string
	balance   float64
}

// Forwarder mirrors local writes to the insights backend asynchronously.
// Forwards are best-effort by contract: a failed or dropped forward is
// logged and counted but never fails the originating ledger operation.
type Forwarder struct {
	insights port.InsightsClient
	metrics  *observability.Metrics
	logger   *zap.Logger

	jobs    chan syncJob
	timeout time.Duration
	wg      sync.WaitGroup
	once    sync.Once
}

// NewForwarder creates a forwarder with the given queue depth and per-send
// timeout. Zero values fall back to 64 jobs and 5 seconds.
func NewForwarder(insights port.InsightsClient, buffer int, timeout time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Forwarder {
	if buffer <= 0 {
		buffer = 64
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Forwarder{
		insights: insights,
		metrics:  metrics,
		logger:   logger,
		jobs:     make(chan syncJob, buffer),
		timeout:  timeout,
	}
}

// Start launches the worker goroutine. It runs until Shutdown is called.
func (f *Forwarder) Start() {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for job := range f.jobs {
			f.send(job)
		}
	}()
}

// Shutdown closes the queue and waits for queued jobs to drain. Enqueue must
// not be called after Shutdown.
func (f *Forwarder) Shutdown() {
	f.once.Do(func() {
		close(f.jobs)
	})
	f.wg.Wait()
}

// EnqueueExpense queues an expense forward. Never blocks: when the queue is
// full the job is dropped and counted.
func (f *Forwarder) EnqueueExpense(record *domain.ExpenseRecord) {
	f.enqueue(syncJob{kind: syncKindExpense, record: record, accountID: record.AccountID})
}

// EnqueueBalance queues a balance forward. Never blocks.
func (f *Forwarder) EnqueueBalance(accountID string, balance float64) {
	f.enqueue(syncJob{kind: syncKindBalance, accountID: accountID, balance: balance})
}

func (f *Forwarder) enqueue(job syncJob) {
	select {
	case f.jobs <- job:
	default:
		f.metrics.IncrSyncFailure(job.kind)
		f.logger.Warn("sync queue full, dropping forward",
			zap.String("kind", job.kind),
			zap.String("account_id", job.accountID),
		)
	}
}

func (f *Forwarder) send(job syncJob) {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	var err error
	switch job.kind {
	case syncKindExpense:
		err = f.insights.ForwardExpense(ctx, job.record)
	case syncKindBalance:
		err = f.insights.ForwardBalance(ctx, job.accountID, job.balance)
	}
	if err != nil {
		f.metrics.IncrSyncFailure(job.kind)
		f.logger.Warn("insights forward failed",
			zap.String("kind", job.kind),
			zap.String("account_id", job.accountID),
			zap.Error(err),
		)
	}
}
