package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sachin12054/ai-expense-ledger-go/internal/domain"
	"github.com/sachin12054/ai-expense-ledger-go/internal/infra/resilience"
	"github.com/sachin12054/ai-expense-ledger-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// accountDoc maps the store's loosely-typed profile document. Numeric fields
// may be absent or null on freshly-created documents; defaulting to zero
// happens here, at the adapter boundary, not in business logic.
type accountDoc struct {
	Name          *string  `json:"name"`
	Email         *string  `json:"email"`
	Balance       *float64 `json:"balance"`
	TotalExpenses *float64 `json:"total_expenses"`
	CreatedAt     *string  `json:"created_at"`
}

func (d *accountDoc) toDomain(accountID string) *domain.Account {
	acct := &domain.Account{ID: accountID}
	if d.Name != nil {
		acct.Name = *d.Name
	}
	if d.Email != nil {
		acct.Email = *d.Email
	}
	if d.Balance != nil {
		acct.Balance = *d.Balance
	}
	if d.TotalExpenses != nil {
		acct.TotalExpenses = *d.TotalExpenses
	}
	if d.CreatedAt != nil {
		if t, err := time.Parse(time.RFC3339, *d.CreatedAt); err == nil {
			acct.CreatedAt = t
		}
	}
	return acct
}

// getAccountVersioned reads the profile document along with its version.
func (c *Client) getAccountVersioned(ctx context.Context, accountID string) (*domain.Account, string, error) {
	body, version, err := c.doGet(ctx, fmt.Sprintf("accounts/%s", accountID))
	if err != nil {
		return nil, "", err
	}
	if body == nil {
		return nil, "", &domain.ErrNotFound{Resource: "account", ID: accountID}
	}

	var doc accountDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, "", fmt.Errorf("failed to decode account: %w", err)
	}
	return doc.toDomain(accountID), version, nil
}

// GetAccount fetches the account profile document.
func (c *Client) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Docstore.GetAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	var account *domain.Account

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			acct, _, err := c.getAccountVersioned(ctx, accountID)
			if err != nil {
				return err
			}
			account = acct
			return nil
		})
	})

	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "docstore/accounts", Err: err}
	}

	return account, nil
}

// UpsertAccount merges fields into the profile document, creating it when
// absent (set-with-merge).
func (c *Client) UpsertAccount(ctx context.Context, accountID string, fields map[string]any) error {
	ctx, span := tracer.Start(ctx, "Docstore.UpsertAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			return c.doPatch(ctx, fmt.Sprintf("accounts/%s", accountID), fields, "")
		})
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "docstore/accounts", Err: err}
	}
	return nil
}

// UpdateAccountTx runs fn against the current account document and writes the
// result conditionally on the version read. A concurrent writer invalidates
// the version; the transaction then re-reads fresh state and retries with
// backoff. Exhausting retries surfaces *domain.ErrStoreTransaction. An error
// returned by fn aborts immediately with no write.
func (c *Client) UpdateAccountTx(ctx context.Context, accountID string, fn port.AccountTxFunc) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Docstore.UpdateAccountTx")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	attempts := 0
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		attempts++

		if err := ctx.Err(); err != nil {
			return nil, &domain.ErrStoreTransaction{AccountID: accountID, Attempts: attempts, Err: err}
		}

		acct, version, err := c.getAccountVersioned(ctx, accountID)
		if err != nil {
			return nil, err
		}

		fields, err := fn(acct)
		if err != nil {
			// Business abort: no write happened, propagate as-is.
			return nil, err
		}

		err = c.doPatch(ctx, fmt.Sprintf("accounts/%s", accountID), fields, version)
		if err == nil {
			committed, _, err := c.getAccountVersioned(ctx, accountID)
			if err != nil {
				return nil, fmt.Errorf("re-read after account transaction: %w", err)
			}
			c.logger.Info("docstore: account transaction committed",
				zap.String("account_id", accountID),
				zap.Int("attempts", attempts),
				zap.Float64("balance", committed.Balance),
				zap.Float64("total_expenses", committed.TotalExpenses),
			)
			return committed, nil
		}

		lastErr = err
		var conflict *domain.ErrConflict
		if !errors.As(err, &conflict) {
			break // non-conflict write failure, retrying blind would not help
		}

		c.logger.Debug("docstore: account transaction conflict, retrying",
			zap.String("account_id", accountID),
			zap.Int("attempt", attempt+1),
		)

		if attempt < c.cfg.MaxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * c.cfg.InitialBackoff
			jitter := time.Duration(rand.Int63n(int64(backoff/2) + 1))
			select {
			case <-ctx.Done():
				return nil, &domain.ErrStoreTransaction{AccountID: accountID, Attempts: attempts, Err: ctx.Err()}
			case <-time.After(backoff + jitter):
			}
		}
	}

	return nil, &domain.ErrStoreTransaction{AccountID: accountID, Attempts: attempts, Err: lastErr}
}
