// Package insights provides the HTTP client for the AI insights backend.
// The ledger treats its payloads as opaque: categorization hints and insight
// blobs pass through without interpretation.
package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sachin12054/ai-expense-ledger-go/internal/domain"
	"github.com/sachin12054/ai-expense-ledger-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("insights")

// Client calls the insights backend (Flask categorizer service).
type Client struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewClient creates an insights client.
func NewClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		cfg:        cfg,
	}
}

// Insights fetches AI-derived spending insights for the account and returns
// the payload verbatim.
func (c *Client) Insights(ctx context.Context, accountID string) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "Insights.Insights")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	var payload json.RawMessage

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			url := fmt.Sprintf("%s/categorize", c.baseURL)
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", accountID))

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("insights API returned status %d", resp.StatusCode)
			}

			return json.NewDecoder(resp.Body).Decode(&payload)
		})
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "insights", Err: err}
	}

	return payload, nil
}

// Categorize asks the backend to categorize an expense description. The
// response category is still normalized by the caller; anything outside the
// fixed set degrades to Other there.
func (c *Client) Categorize(ctx context.Context, accountID, description string) (string, error) {
	ctx, span := tracer.Start(ctx, "Insights.Categorize")
	defer span.End()

	body, err := json.Marshal(map[string]string{"description": description})
	if err != nil {
		return "", err
	}

	var result struct {
		Category string `json:"category"`
	}

	_, err = c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			url := fmt.Sprintf("%s/categorize", c.baseURL)
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", accountID))
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("insights API returned status %d", resp.StatusCode)
			}

			return json.NewDecoder(resp.Body).Decode(&result)
		})
	})
	if err != nil {
		return "", &domain.ErrExternalService{Service: "insights", Err: err}
	}

	return result.Category, nil
}

// ForwardExpense mirrors a committed expense to the backend. Callers treat
// failures as a sync warning, never as a failure of the recording itself, so
// no retry wrapping here — one bounded attempt.
func (c *Client) ForwardExpense(ctx context.Context, record *domain.ExpenseRecord) error {
	ctx, span := tracer.Start(ctx, "Insights.ForwardExpense")
	defer span.End()

	payload := map[string]any{
		"userId":      record.AccountID,
		"amount":      record.Amount,
		"category":    record.Category,
		"description": record.Description,
		"date":        record.Date.UTC().Format(time.RFC3339),
	}
	return c.post(ctx, "/add_expense", record.AccountID, payload)
}

// ForwardBalance mirrors a committed balance to the backend, best-effort.
func (c *Client) ForwardBalance(ctx context.Context, accountID string, balance float64) error {
	ctx, span := tracer.Start(ctx, "Insights.ForwardBalance")
	defer span.End()

	payload := map[string]any{
		"userId":  accountID,
		"balance": balance,
	}
	return c.post(ctx, "/set_balance", accountID, payload)
}

func (c *Client) post(ctx context.Context, path, accountID string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", accountID))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.ErrExternalService{Service: "insights", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &domain.ErrExternalService{Service: "insights", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return nil
}
