package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sachin12054/ai-expense-ledger-go/internal/domain"
	"github.com/sachin12054/ai-expense-ledger-go/internal/infra/resilience"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// expenseDoc maps one expense document in the account's expense collection.
type expenseDoc struct {
	ID          string   `json:"id"`
	Amount      *float64 `json:"amount"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Date        string   `json:"date"`
	EntryDate   string   `json:"entry_date,omitempty"`
}

func (d *expenseDoc) toDomain(accountID string) domain.ExpenseRecord {
	rec := domain.ExpenseRecord{
		ID:          d.ID,
		AccountID:   accountID,
		Category:    d.Category,
		Description: d.Description,
		EntryDate:   d.EntryDate,
	}
	if d.Amount != nil {
		rec.Amount = *d.Amount
	}
	if t, err := time.Parse(time.RFC3339, d.Date); err == nil {
		rec.Date = t
	}
	return rec
}

// AppendExpense writes a new expense document with a generated identifier.
// Appends need no mutual exclusion: every record gets a unique ID.
func (c *Client) AppendExpense(ctx context.Context, record *domain.ExpenseRecord) (*domain.ExpenseRecord, error) {
	ctx, span := tracer.Start(ctx, "Docstore.AppendExpense")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", record.AccountID))

	doc := expenseDoc{
		ID:          uuid.NewString(),
		Amount:      &record.Amount,
		Category:    record.Category,
		Description: record.Description,
		Date:        record.Date.UTC().Format(time.RFC3339),
		EntryDate:   record.EntryDate,
	}

	var stored expenseDoc

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doPost(ctx, fmt.Sprintf("accounts/%s/expenses", record.AccountID), doc)
			if err != nil {
				return err
			}
			if len(body) == 0 {
				stored = doc
				return nil
			}
			return json.Unmarshal(body, &stored)
		})
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "docstore/expenses", Err: err}
	}

	created := stored.toDomain(record.AccountID)
	return &created, nil
}

// ListExpenses returns the account's expenses ordered most-recent-first.
func (c *Client) ListExpenses(ctx context.Context, accountID string, limit int) ([]domain.ExpenseRecord, error) {
	ctx, span := tracer.Start(ctx, "Docstore.ListExpenses")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	if limit <= 0 {
		limit = 100
	}

	var records []domain.ExpenseRecord

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("accounts/%s/expenses?order=date.desc&limit=%d", accountID, limit)
			body, _, err := c.doGet(ctx, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				records = []domain.ExpenseRecord{}
				return nil
			}

			var docs []expenseDoc
			if err := json.Unmarshal(body, &docs); err != nil {
				return fmt.Errorf("failed to decode expenses: %w", err)
			}

			records = make([]domain.ExpenseRecord, 0, len(docs))
			for i := range docs {
				records = append(records, docs[i].toDomain(accountID))
			}
			return nil
		})
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "docstore/expenses", Err: err}
	}

	return records, nil
}
