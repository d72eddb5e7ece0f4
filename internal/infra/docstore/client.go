// Package docstore provides an HTTP client for the remote document store.
// The store keeps one profile document per account plus a per-account
// expense collection, and exposes document-version ETags so single-document
// read-modify-write sequences can be committed conditionally.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sachin12054/ai-expense-ledger-go/internal/domain"
	"github.com/sachin12054/ai-expense-ledger-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("docstore")

// Client wraps HTTP calls to the document store's REST API.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	cb            *gobreaker.CircuitBreaker
	cfg           resilience.Config
	watchInterval time.Duration
	logger        *zap.Logger
}

// NewClient creates a document store client. watchInterval is the poll
// period for change subscriptions.
func NewClient(httpClient *http.Client, baseURL, apiKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, watchInterval time.Duration, logger *zap.Logger) *Client {
	if watchInterval <= 0 {
		watchInterval = 2 * time.Second
	}
	return &Client{
		httpClient:    httpClient,
		baseURL:       baseURL,
		apiKey:        apiKey,
		cb:            cb,
		cfg:           cfg,
		watchInterval: watchInterval,
		logger:        logger,
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	url := fmt.Sprintf("%s/v1/docs/%s", c.baseURL, path)
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// doGet fetches a document or collection. Returns the body and the document
// version from the ETag header. A 404 yields (nil, "", nil).
func (c *Client) doGet(ctx context.Context, path string) ([]byte, string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("docstore: GET failed", zap.String("path", path), zap.Error(err))
		return nil, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, "", nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("docstore: GET non-2xx",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, "", fmt.Errorf("docstore GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	return body, resp.Header.Get("ETag"), nil
}

// doPatch merges fields into a document. A non-empty ifMatch makes the write
// conditional on the document version; a conflicting concurrent write
// surfaces as *domain.ErrConflict.
func (c *Client) doPatch(ctx context.Context, path string, fields map[string]any, ifMatch string) error {
	jsonBody, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPatch, path, jsonBody)
	if err != nil {
		return err
	}
	if ifMatch != "" {
		req.Header.Set("If-Match", ifMatch)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("docstore: PATCH failed", zap.String("path", path), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusPreconditionFailed || resp.StatusCode == http.StatusConflict {
		return &domain.ErrConflict{DocID: path, Version: ifMatch}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Warn("docstore: PATCH non-2xx",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return fmt.Errorf("docstore PATCH %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	c.logger.Debug("docstore: PATCH OK", zap.String("path", path))
	return nil
}

// doPost appends a new document to a collection and returns the stored
// representation (the store assigns any fields the client left unset).
func (c *Client) doPost(ctx context.Context, path string, doc any) ([]byte, error) {
	jsonBody, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, jsonBody)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("docstore: POST failed", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("docstore: POST non-2xx",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, fmt.Errorf("docstore POST %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	c.logger.Debug("docstore: POST OK", zap.String("path", path), zap.Int("status", resp.StatusCode))
	return body, nil
}
