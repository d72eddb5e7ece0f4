package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/sachin12054/ai-expense-ledger-go/internal/domain"

	"go.uber.org/zap"
)

// WatchExpenses emits a full-replacement snapshot of the account's expense
// collection whenever its contents change. The store offers no incremental
// diff, so consumers must recompute from each snapshot.
//
// The returned cancel func tears the stream down; the snapshot channel is
// closed afterwards and nothing is delivered past that point. Cancelling the
// parent context has the same effect.
func (c *Client) WatchExpenses(ctx context.Context, accountID string) (<-chan []domain.ExpenseRecord, func(), error) {
	// First snapshot fetched eagerly so subscribers start from known state.
	initial, err := c.ListExpenses(ctx, accountID, 0)
	if err != nil {
		return nil, nil, err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	out := make(chan []domain.ExpenseRecord, 1)
	out <- initial

	go func() {
		defer close(out)

		last, _ := json.Marshal(initial)
		ticker := time.NewTicker(c.watchInterval)
		defer ticker.Stop()

		for {
			select {
			case <-watchCtx.Done():
				c.logger.Debug("docstore: watch stopped", zap.String("account_id", accountID))
				return
			case <-ticker.C:
			}

			records, err := c.ListExpenses(watchCtx, accountID, 0)
			if err != nil {
				// Transient store trouble: keep the subscription alive and
				// try again on the next tick.
				c.logger.Warn("docstore: watch poll failed",
					zap.String("account_id", accountID),
					zap.Error(err),
				)
				continue
			}

			current, _ := json.Marshal(records)
			if bytes.Equal(current, last) {
				continue
			}
			last = current

			select {
			case out <- records:
			case <-watchCtx.Done():
				return
			}
		}
	}()

	return out, cancel, nil
}
