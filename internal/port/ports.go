// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"encoding/json"

	"github.com/sachin12054/ai-expense-ledger-go/internal/domain"
)

// AccountTxFunc is applied inside an optimistic account transaction. It
// receives the freshly-read account and returns the fields to write back.
// Returning an error aborts the transaction with no effect.
type AccountTxFunc func(acct *domain.Account) (map[string]any, error)

// LedgerStore defines all document-store operations the ledger requires:
// get-by-id, set-with-merge, atomic read-modify-write on a single document,
// append-with-generated-id, ordered query, and change subscription.
type LedgerStore interface {
	// Accounts
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)
	UpsertAccount(ctx context.Context, accountID string, fields map[string]any) error

	// UpdateAccountTx runs fn against the current account document and
	// conditionally writes the result keyed on the document version,
	// retrying on concurrent-write conflicts. The returned account reflects
	// the committed state.
	UpdateAccountTx(ctx context.Context, accountID string, fn AccountTxFunc) (*domain.Account, error)

	// Expenses
	AppendExpense(ctx context.Context, record *domain.ExpenseRecord) (*domain.ExpenseRecord, error)
	ListExpenses(ctx context.Context, accountID string, limit int) ([]domain.ExpenseRecord, error)

	// WatchExpenses yields a full-replacement snapshot of the account's
	// expense records on every change. Cancel stops the stream; no snapshot
	// is delivered after it returns.
	WatchExpenses(ctx context.Context, accountID string) (snapshots <-chan []domain.ExpenseRecord, cancel func(), err error)
}

// InsightsClient talks to the AI insights backend.
type InsightsClient interface {
	// Insights returns the gateway's payload verbatim; the ledger never
	// interprets it.
	Insights(ctx context.Context, accountID string) (json.RawMessage, error)

	// Categorize asks the gateway for a category for the given description.
	Categorize(ctx context.Context, accountID, description string) (string, error)

	// Best-effort sync calls, carrying the same shape as the local write.
	ForwardExpense(ctx context.Context, record *domain.ExpenseRecord) error
	ForwardBalance(ctx context.Context, accountID string, balance float64) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
