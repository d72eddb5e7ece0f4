package domain

import "fmt"

// Error types for consistent error handling across the ledger service.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates a validation error (bad input).
// Raised before any write is attempted.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrUnauthorized indicates a missing or invalid identity token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrForbidden indicates the caller is not the owner of the account.
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}

// ErrInsufficientBalance indicates a withdrawal would drive the balance
// negative. The transaction is aborted with no partial effect.
type ErrInsufficientBalance struct {
	Available float64
	Requested float64
}

func (e *ErrInsufficientBalance) Error() string {
	return fmt.Sprintf("insufficient balance: available=%.2f requested=%.2f", e.Available, e.Requested)
}

// ErrStoreTransaction indicates the account-document transaction failed after
// all optimistic retries. When raised from RecordExpense the expense record
// appended in step one remains persisted — the gap is surfaced, not hidden.
type ErrStoreTransaction struct {
	AccountID string
	Attempts  int
	Err       error
}

func (e *ErrStoreTransaction) Error() string {
	return fmt.Sprintf("account transaction failed for %s after %d attempts: %v", e.AccountID, e.Attempts, e.Err)
}

func (e *ErrStoreTransaction) Unwrap() error {
	return e.Err
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrConflict indicates a conditional write lost against a concurrent writer.
// The store adapter retries on it; it only escapes wrapped in ErrStoreTransaction.
type ErrConflict struct {
	DocID   string
	Version string
}

func (e *ErrConflict) Error() string {
	return fmt.Sprintf("document %s changed concurrently (version %s)", e.DocID, e.Version)
}
