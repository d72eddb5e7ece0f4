package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sachin12054/ai-expense-ledger-go/internal/domain"
	"github.com/sachin12054/ai-expense-ledger-go/internal/handler"
	"github.com/sachin12054/ai-expense-ledger-go/internal/infra/observability"
	"github.com/sachin12054/ai-expense-ledger-go/internal/port"
	"github.com/sachin12054/ai-expense-ledger-go/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

func TestHealthz(t *testing.T) {
	router := handler.NewRouter(nil, nil, observability.NewMetrics(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	router := handler.NewRouter(nil, nil, observability.NewMetrics(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	router := handler.NewRouter(nil, nil, observability.NewMetrics(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

// --- Authenticated route tests ---

const testSecret = "router-test-secret"

type stubStore struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	expenses []domain.ExpenseRecord
}

func newStubStore() *stubStore {
	return &stubStore{accounts: make(map[string]*domain.Account)}
}

func (s *stubStore) GetAccount(_ context.Context, accountID string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[accountID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	copied := *acct
	return &copied, nil
}

func (s *stubStore) UpsertAccount(_ context.Context, accountID string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[accountID]
	if !ok {
		acct = &domain.Account{ID: accountID}
		s.accounts[accountID] = acct
	}
	if v, ok := fields["name"].(string); ok {
		acct.Name = v
	}
	if v, ok := fields["email"].(string); ok {
		acct.Email = v
	}
	if v, ok := fields["balance"].(float64); ok {
		acct.Balance = v
	}
	if v, ok := fields["total_expenses"].(float64); ok {
		acct.TotalExpenses = v
	}
	return nil
}

func (s *stubStore) UpdateAccountTx(_ context.Context, accountID string, fn port.AccountTxFunc) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[accountID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	snapshot := *acct
	fields, err := fn(&snapshot)
	if err != nil {
		return nil, err
	}
	if v, ok := fields["balance"].(float64); ok {
		acct.Balance = v
	}
	if v, ok := fields["total_expenses"].(float64); ok {
		acct.TotalExpenses = v
	}
	copied := *acct
	return &copied, nil
}

func (s *stubStore) AppendExpense(_ context.Context, record *domain.ExpenseRecord) (*domain.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *record
	stored.ID = "exp-stub"
	s.expenses = append(s.expenses, stored)
	return &stored, nil
}

func (s *stubStore) ListExpenses(_ context.Context, accountID string, limit int) ([]domain.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ExpenseRecord, 0)
	for _, rec := range s.expenses {
		if rec.AccountID == accountID {
			out = append(out, rec)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *stubStore) WatchExpenses(_ context.Context, _ string) (<-chan []domain.ExpenseRecord, func(), error) {
	ch := make(chan []domain.ExpenseRecord)
	close(ch)
	return ch, func() {}, nil
}

type stubInsights struct{}

func (stubInsights) Insights(_ context.Context, _ string) (json.RawMessage, error) {
	return json.RawMessage(`{"insights":["spend less on coffee"]}`), nil
}
func (stubInsights) Categorize(_ context.Context, _, _ string) (string, error) { return "Other", nil }
func (stubInsights) ForwardExpense(_ context.Context, _ *domain.ExpenseRecord) error {
	return nil
}
func (stubInsights) ForwardBalance(_ context.Context, _ string, _ float64) error { return nil }

func newTestRouter(store *stubStore) http.Handler {
	svc := service.NewLedgerService(store, stubInsights{}, nil, nil, observability.NewMetrics(), zap.NewNop())
	return handler.NewRouter(svc, service.NewTokenVerifier(testSecret), observability.NewMetrics(), zap.NewNop())
}

func bearerToken(t *testing.T, accountID string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   accountID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + signed
}

func TestV1_RequiresToken(t *testing.T) {
	router := newTestRouter(newStubStore())

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/acct-1/expenses", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}
}

func TestRecordExpense_EndToEnd(t *testing.T) {
	store := newStubStore()
	store.accounts["acct-1"] = &domain.Account{ID: "acct-1", Balance: 100}
	router := newTestRouter(store)

	body := bytes.NewBufferString(`{"amount":"30.50","category":"Food","description":"lunch"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/accounts/acct-1/expenses", body)
	req.Header.Set("Authorization", bearerToken(t, "acct-1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var record domain.ExpenseRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if record.Amount != 30.5 || record.Category != "Food" {
		t.Errorf("unexpected record: %+v", record)
	}
	if store.accounts["acct-1"].Balance != 69.5 {
		t.Errorf("expected balance 69.5, got %v", store.accounts["acct-1"].Balance)
	}
}

func TestRecordExpense_OtherAccountForbidden(t *testing.T) {
	store := newStubStore()
	store.accounts["acct-2"] = &domain.Account{ID: "acct-2", Balance: 100}
	router := newTestRouter(store)

	body := bytes.NewBufferString(`{"amount":10,"category":"Food"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/accounts/acct-2/expenses", body)
	req.Header.Set("Authorization", bearerToken(t, "acct-1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestAdjustBalance_InsufficientReturns422(t *testing.T) {
	store := newStubStore()
	store.accounts["acct-1"] = &domain.Account{ID: "acct-1", Balance: 50}
	router := newTestRouter(store)

	body := bytes.NewBufferString(`{"delta":-80}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/accounts/acct-1/balance", body)
	req.Header.Set("Authorization", bearerToken(t, "acct-1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.accounts["acct-1"].Balance != 50 {
		t.Errorf("expected balance unchanged, got %v", store.accounts["acct-1"].Balance)
	}
}

func TestAdjustBalance_MissingDelta(t *testing.T) {
	store := newStubStore()
	store.accounts["acct-1"] = &domain.Account{ID: "acct-1", Balance: 50}
	router := newTestRouter(store)

	body := bytes.NewBufferString(`{}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/accounts/acct-1/balance", body)
	req.Header.Set("Authorization", bearerToken(t, "acct-1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestGetAccount_NotFound(t *testing.T) {
	router := newTestRouter(newStubStore())

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/ghost", nil)
	req.Header.Set("Authorization", bearerToken(t, "ghost"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestEnsureAccount_CreatesProfile(t *testing.T) {
	store := newStubStore()
	router := newTestRouter(store)

	body := bytes.NewBufferString(`{"name":"Ada","email":"ada@example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/accounts/acct-1/", body)
	req.Header.Set("Authorization", bearerToken(t, "acct-1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var account domain.Account
	if err := json.Unmarshal(rec.Body.Bytes(), &account); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if account.Name != "Ada" || account.Balance != 0 {
		t.Errorf("unexpected account: %+v", account)
	}
}

func TestOverview_EndToEnd(t *testing.T) {
	store := newStubStore()
	store.accounts["acct-1"] = &domain.Account{ID: "acct-1", Balance: 70, TotalExpenses: 30}
	store.expenses = []domain.ExpenseRecord{
		{AccountID: "acct-1", Amount: 20, Category: "Food", Date: time.Now()},
		{AccountID: "acct-1", Amount: 10, Category: "Transport", Date: time.Now()},
	}
	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/acct-1/overview", nil)
	req.Header.Set("Authorization", bearerToken(t, "acct-1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var overview domain.Overview
	if err := json.Unmarshal(rec.Body.Bytes(), &overview); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if overview.Account == nil || overview.Account.Balance != 70 {
		t.Errorf("unexpected account in overview: %+v", overview.Account)
	}
	if len(overview.Categories) != 2 {
		t.Errorf("expected 2 category aggregates, got %d", len(overview.Categories))
	}
}

func TestInsights_PassThrough(t *testing.T) {
	store := newStubStore()
	store.accounts["acct-1"] = &domain.Account{ID: "acct-1"}
	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/acct-1/insights", nil)
	req.Header.Set("Authorization", bearerToken(t, "acct-1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != `{"insights":["spend less on coffee"]}` {
		t.Errorf("expected verbatim payload, got %s", rec.Body.String())
	}
}
