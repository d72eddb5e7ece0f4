package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sachin12054/ai-expense-ledger-go/internal/domain"
	"github.com/sachin12054/ai-expense-ledger-go/internal/infra/observability"
	"github.com/sachin12054/ai-expense-ledger-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Expenses — /v1/accounts/{accountId}/expenses
// ============================================================

func listExpensesHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{accountId}/expenses")
		defer span.End()

		accountID := chi.URLParam(r, "accountId")
		span.SetAttributes(attribute.String("account.id", accountID))

		records, err := svc.ListExpenses(ctx, accountID, parseLimit(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"expenses": records,
			"count":    len(records),
		})
	}
}

func recordExpenseHandler(svc *service.LedgerService, metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts/{accountId}/expenses")
		defer span.End()

		accountID := chi.URLParam(r, "accountId")
		span.SetAttributes(attribute.String("account.id", accountID))

		// Amount decodes as json.Number so "12.50" and 12.50 both survive
		// untouched until validation.
		var input domain.ExpenseInput
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		start := time.Now()
		record, err := svc.RecordExpense(ctx, AccountIDFromContext(ctx), accountID, &input)
		metrics.RecordRequestDuration("record_expense", time.Since(start))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, record)
	}
}

// ============================================================
// Balance — POST /v1/accounts/{accountId}/balance
// ============================================================

func adjustBalanceHandler(svc *service.LedgerService, metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts/{accountId}/balance")
		defer span.End()

		accountID := chi.URLParam(r, "accountId")
		span.SetAttributes(attribute.String("account.id", accountID))

		var req struct {
			Delta *float64 `json:"delta"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Delta == nil {
			writeError(w, http.StatusBadRequest, "delta is required")
			return
		}

		start := time.Now()
		balance, err := svc.AdjustBalance(ctx, AccountIDFromContext(ctx), accountID, *req.Delta)
		metrics.RecordRequestDuration("adjust_balance", time.Since(start))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"balance": balance})
	}
}
