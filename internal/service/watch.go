package service

import (
	"context"
	"sync"

	"github.com/sachin12054/ai-expense-ledger-go/internal/domain"
	"github.com/sachin12054/ai-expense-ledger-go/internal/port"

	"go.uber.org/zap"
)

// AggregateWatcher keeps derived aggregates warm for active accounts. It
// subscribes to the store's expense change stream and recomputes the full
// breakdown and trend on every snapshot, writing the result into the shared
// cache so reads never block on a recompute.
type AggregateWatcher struct {
	store  port.LedgerStore
	cache  port.Cache[domain.AccountAggregates]
	logger *zap.Logger

	mu      sync.Mutex
	cancels map[string]func()
	wg      sync.WaitGroup
}

// NewAggregateWatcher creates an idle watcher. Accounts are added with
// Subscribe.
func NewAggregateWatcher(store port.LedgerStore, cache port.Cache[domain.AccountAggregates], logger *zap.Logger) *AggregateWatcher {
	return &AggregateWatcher{
		store:   store,
		cache:   cache,
		logger:  logger,
		cancels: make(map[string]func()),
	}
}

// Subscribe starts watching the account's expenses. Subscribing an account
// that is already watched is a no-op.
func (w *AggregateWatcher) Subscribe(ctx context.Context, accountID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.cancels[accountID]; ok {
		return nil
	}

	snapshots, cancel, err := w.store.WatchExpenses(ctx, accountID)
	if err != nil {
		return err
	}
	w.cancels[accountID] = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for records := range snapshots {
			w.cache.Set(accountID, domain.AccountAggregates{
				Categories: DeriveCategoryBreakdown(records),
				Trend:      DeriveSpendingTrend(records),
			})
			w.logger.Debug("aggregates refreshed",
				zap.String("account_id", accountID),
				zap.Int("records", len(records)),
			)
		}
	}()

	return nil
}

// Unsubscribe stops watching the account. The cached aggregates stay until
// their TTL expires.
func (w *AggregateWatcher) Unsubscribe(accountID string) {
	w.mu.Lock()
	cancel, ok := w.cancels[accountID]
	if ok {
		delete(w.cancels, accountID)
	}
	w.mu.Unlock()

	if ok {
		cancel()
	}
}

// Close stops all subscriptions and waits for the consumer goroutines.
func (w *AggregateWatcher) Close() {
	w.mu.Lock()
	for id, cancel := range w.cancels {
		cancel()
		delete(w.cancels, id)
	}
	w.mu.Unlock()

	w.wg.Wait()
}
