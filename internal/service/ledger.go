// Package service provides the business logic layer (use cases).
// LedgerService is the invariant-preserving core: it records expenses,
// adjusts balances, and keeps the account counters consistent under
// concurrent, partially-failing writes.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/sachin12054/ai-expense-ledger-go/internal/domain"
	"github.com/sachin12054/ai-expense-ledger-go/internal/infra/observability"
	"github.com/sachin12054/ai-expense-ledger-go/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ledgerTracer = otel.Tracer("service/ledger")

// categorizeTimeout bounds the best-effort call to the insights categorizer
// when the client supplied no category.
const categorizeTimeout = 2 * time.Second

// LedgerService orchestrates all ledger operations against the document store.
type LedgerService struct {
	store     port.LedgerStore
	insights  port.InsightsClient
	forwarder *Forwarder
	aggCache  port.Cache[domain.AccountAggregates]
	watcher   *AggregateWatcher
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewLedgerService creates a new ledger service. forwarder and aggCache may
// be nil: without a forwarder best-effort sync forwards are skipped, and
// without a cache every aggregate query recomputes from the store.
func NewLedgerService(store port.LedgerStore, insights port.InsightsClient, forwarder *Forwarder, aggCache port.Cache[domain.AccountAggregates], metrics *observability.Metrics, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		store:     store,
		insights:  insights,
		forwarder: forwarder,
		aggCache:  aggCache,
		metrics:   metrics,
		logger:    logger,
	}
}

// WithWatcher attaches an aggregate watcher. Accounts are subscribed on
// first access so their derived views stay warm between requests.
func (s *LedgerService) WithWatcher(w *AggregateWatcher) *LedgerService {
	s.watcher = w
	return s
}

// ============================================================
// Accounts
// ============================================================

// EnsureAccount lazily creates the account profile document with zero
// balances on first authenticated access. Existing fields are preserved
// (set-with-merge), so calling it repeatedly is harmless.
func (s *LedgerService) EnsureAccount(ctx context.Context, accountID, name, email string) (*domain.Account, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.EnsureAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	acct, err := s.store.GetAccount(ctx, accountID)
	if err == nil {
		s.subscribeWatcher(accountID)
		return acct, nil
	}
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		return nil, err
	}

	fields := map[string]any{
		"name":           name,
		"email":          email,
		"balance":        0.0,
		"total_expenses": 0.0,
		"created_at":     time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.store.UpsertAccount(ctx, accountID, fields); err != nil {
		return nil, err
	}

	s.logger.Info("account initialized",
		zap.String("account_id", accountID),
		zap.String("email", email),
	)

	s.subscribeWatcher(accountID)
	return s.store.GetAccount(ctx, accountID)
}

// countExternal feeds the external-error counter when an upstream failure
// bubbles up, then passes the error through unchanged.
func (s *LedgerService) countExternal(err error) error {
	var external *domain.ErrExternalService
	if errors.As(err, &external) {
		s.metrics.IncrExternalError(external.Service)
	}
	return err
}

// subscribeWatcher keeps the account's derived aggregates warm. The watch
// outlives the request, so it uses the background context; failures are a
// cache-warming concern only.
func (s *LedgerService) subscribeWatcher(accountID string) {
	if s.watcher == nil {
		return
	}
	if err := s.watcher.Subscribe(context.Background(), accountID); err != nil {
		s.logger.Warn("aggregate watch subscription failed",
			zap.String("account_id", accountID),
			zap.Error(err),
		)
	}
}

// GetAccount returns the account profile with its running counters.
func (s *LedgerService) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.GetAccount")
	defer span.End()

	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, s.countExternal(err)
	}
	return acct, nil
}

// UpdateProfile mutates the display fields only. Balances and counters are
// owned by the ledger operations and never writable here.
func (s *LedgerService) UpdateProfile(ctx context.Context, callerID, accountID, name, email string) (*domain.Account, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.UpdateProfile")
	defer span.End()

	if callerID == "" {
		return nil, &domain.ErrUnauthorized{}
	}
	if callerID != accountID {
		return nil, &domain.ErrForbidden{Action: "update another account's profile"}
	}

	fields := map[string]any{}
	if name != "" {
		fields["name"] = name
	}
	if email != "" {
		fields["email"] = email
	}
	if len(fields) == 0 {
		return nil, &domain.ErrValidation{Field: "profile", Message: "nothing to update"}
	}

	if err := s.store.UpsertAccount(ctx, accountID, fields); err != nil {
		return nil, err
	}
	return s.store.GetAccount(ctx, accountID)
}

// ============================================================
// Expense recording
// ============================================================

// RecordExpense validates and persists a new expense, then adjusts the
// account's balance and total-expenses counters in one per-document
// transaction. The two writes span two documents and are not mutually
// atomic: if the counter transaction fails after retries the appended
// record remains and ErrStoreTransaction surfaces to the caller.
//
// A shortfall never rejects the expense: the balance is clamped at zero.
func (s *LedgerService) RecordExpense(ctx context.Context, callerID, accountID string, input *domain.ExpenseInput) (*domain.ExpenseRecord, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.RecordExpense")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	if callerID == "" {
		return nil, &domain.ErrUnauthorized{}
	}
	if callerID != accountID {
		return nil, &domain.ErrForbidden{Action: "record expense on another account"}
	}

	amount, err := parseAmount(input.Amount)
	if err != nil {
		return nil, err
	}

	category := s.resolveCategory(ctx, accountID, input)
	description := input.Description
	if description == "" {
		description = category
	}

	record := &domain.ExpenseRecord{
		AccountID:   accountID,
		Amount:      amount,
		Category:    category,
		Description: description,
		// The record date is authoritative and server-assigned; the client's
		// date string is advisory display metadata only.
		Date:      time.Now().UTC(),
		EntryDate: input.Date,
	}

	stored, err := s.store.AppendExpense(ctx, record)
	if err != nil {
		return nil, s.countExternal(err)
	}

	committed, err := s.store.UpdateAccountTx(ctx, accountID, func(acct *domain.Account) (map[string]any, error) {
		newTotal := acct.TotalExpenses + amount
		newBalance := acct.Balance - amount
		if newBalance < 0 {
			newBalance = 0 // clamp, never reject (see AdjustBalance for the opposite policy)
		}
		return map[string]any{
			"balance":        newBalance,
			"total_expenses": newTotal,
		}, nil
	})
	if err != nil {
		var txErr *domain.ErrStoreTransaction
		if errors.As(err, &txErr) {
			s.metrics.IncrTxFailure()
			var conflict *domain.ErrConflict
			if errors.As(txErr.Err, &conflict) {
				s.metrics.IncrTxConflict()
			}
			// The expense document is already persisted; no automatic
			// compensation. Surface the gap loudly.
			s.logger.Error("balance transaction failed, expense record orphaned",
				zap.String("account_id", accountID),
				zap.String("expense_id", stored.ID),
				zap.Float64("amount", amount),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.metrics.IncrExpenseRecorded(category)
	s.logger.Info("expense recorded",
		zap.String("account_id", accountID),
		zap.String("expense_id", stored.ID),
		zap.String("category", category),
		zap.Float64("amount", amount),
		zap.Float64("new_balance", committed.Balance),
		zap.Float64("total_expenses", committed.TotalExpenses),
	)

	if s.aggCache != nil {
		s.aggCache.Delete(accountID)
	}
	if s.forwarder != nil {
		s.forwarder.EnqueueExpense(stored)
	}

	return stored, nil
}

// resolveCategory coerces the input category to the fixed set. When the
// client supplied none but gave a description, the insights categorizer is
// consulted best-effort with a short deadline.
func (s *LedgerService) resolveCategory(ctx context.Context, accountID string, input *domain.ExpenseInput) string {
	if input.Category != "" {
		return domain.NormalizeCategory(input.Category)
	}
	if input.Description == "" || s.insights == nil {
		return domain.CategoryOther
	}

	catCtx, cancel := context.WithTimeout(ctx, categorizeTimeout)
	defer cancel()

	category, err := s.insights.Categorize(catCtx, accountID, input.Description)
	if err != nil {
		s.countExternal(err)
		s.logger.Debug("categorizer unavailable, defaulting to Other",
			zap.String("account_id", accountID),
			zap.Error(err),
		)
		return domain.CategoryOther
	}
	return domain.NormalizeCategory(category)
}

// ============================================================
// Balance adjustment
// ============================================================

// AdjustBalance applies a signed delta to the account balance in one
// per-document transaction. A delta that would drive the balance negative
// aborts with ErrInsufficientBalance and leaves the document untouched —
// unlike expense recording, withdrawals are rejected, not clamped.
func (s *LedgerService) AdjustBalance(ctx context.Context, callerID, accountID string, delta float64) (float64, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.AdjustBalance")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	if callerID == "" {
		return 0, &domain.ErrUnauthorized{}
	}
	if callerID != accountID {
		return 0, &domain.ErrForbidden{Action: "adjust another account's balance"}
	}

	committed, err := s.store.UpdateAccountTx(ctx, accountID, func(acct *domain.Account) (map[string]any, error) {
		updated := acct.Balance + delta
		if updated < 0 {
			return nil, &domain.ErrInsufficientBalance{Available: acct.Balance, Requested: -delta}
		}
		return map[string]any{"balance": updated}, nil
	})
	if err != nil {
		var txErr *domain.ErrStoreTransaction
		if errors.As(err, &txErr) {
			s.metrics.IncrTxFailure()
			var conflict *domain.ErrConflict
			if errors.As(txErr.Err, &conflict) {
				s.metrics.IncrTxConflict()
			}
		}
		return 0, err
	}

	s.logger.Info("balance adjusted",
		zap.String("account_id", accountID),
		zap.Float64("delta", delta),
		zap.Float64("new_balance", committed.Balance),
	)

	if s.forwarder != nil {
		s.forwarder.EnqueueBalance(accountID, committed.Balance)
	}

	return committed.Balance, nil
}

// ============================================================
// Queries
// ============================================================

// ListExpenses returns the account's expenses, most recent first.
func (s *LedgerService) ListExpenses(ctx context.Context, accountID string, limit int) ([]domain.ExpenseRecord, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.ListExpenses")
	defer span.End()

	records, err := s.store.ListExpenses(ctx, accountID, limit)
	if err != nil {
		return nil, s.countExternal(err)
	}
	return records, nil
}

// GetOverview assembles the dashboard payload: profile and expense snapshot
// fetched concurrently, with both derivations computed from the snapshot.
func (s *LedgerService) GetOverview(ctx context.Context, accountID string) (*domain.Overview, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.GetOverview")
	defer span.End()

	var (
		account *domain.Account
		records []domain.ExpenseRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		account, err = s.store.GetAccount(gctx, accountID)
		return err
	})
	g.Go(func() error {
		var err error
		records, err = s.store.ListExpenses(gctx, accountID, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	recent := records
	if len(recent) > 10 {
		recent = recent[:10]
	}

	return &domain.Overview{
		Account:    account,
		Categories: DeriveCategoryBreakdown(records),
		Trend:      DeriveSpendingTrend(records),
		Recent:     recent,
	}, nil
}

// GetInsights forwards the account's insights request to the AI backend and
// returns the payload verbatim.
func (s *LedgerService) GetInsights(ctx context.Context, accountID string) (json.RawMessage, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.GetInsights")
	defer span.End()

	payload, err := s.insights.Insights(ctx, accountID)
	if err != nil {
		return nil, s.countExternal(err)
	}
	return payload, nil
}

// ============================================================
// Input parsing
// ============================================================

// parseAmount accepts the number-or-string amount shape from the
// presentation layer and rejects anything that is not a finite positive
// number before any write happens.
func parseAmount(raw any) (float64, error) {
	var d decimal.Decimal
	var err error

	switch v := raw.(type) {
	case nil:
		return 0, &domain.ErrValidation{Field: "amount", Message: "required"}
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, &domain.ErrValidation{Field: "amount", Message: "must be finite"}
		}
		d = decimal.NewFromFloat(v)
	case string:
		d, err = decimal.NewFromString(v)
		if err != nil {
			return 0, &domain.ErrValidation{Field: "amount", Message: "not a number"}
		}
	case json.Number:
		d, err = decimal.NewFromString(v.String())
		if err != nil {
			return 0, &domain.ErrValidation{Field: "amount", Message: "not a number"}
		}
	default:
		return 0, &domain.ErrValidation{Field: "amount", Message: "not a number"}
	}

	if !d.IsPositive() {
		return 0, &domain.ErrValidation{Field: "amount", Message: "must be greater than zero"}
	}

	return d.InexactFloat64(), nil
}
