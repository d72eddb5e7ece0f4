// Package domain defines the core business entities for the expense ledger.
// These models are independent of the document store and represent the
// canonical data structures used throughout the service.
package domain

import "time"

// ============================================================
// Accounts
// ============================================================

// Account is a user's profile document plus its running counters.
//
// Invariants maintained by the ledger service:
//   - Balance is never negative after a successful operation.
//   - TotalExpenses equals the sum of amounts over the account's expense
//     records whenever the store is quiescent.
type Account struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Balance       float64   `json:"balance"`
	TotalExpenses float64   `json:"total_expenses"`
	CreatedAt     time.Time `json:"created_at"`
}

// ============================================================
// Expense records
// ============================================================

// ExpenseRecord is a single immutable expense owned by exactly one account.
// Date is assigned server-side at creation; EntryDate carries the advisory
// client-supplied date string (OCR or manual entry) for display only.
type ExpenseRecord struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	Amount      float64   `json:"amount"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	EntryDate   string    `json:"entry_date,omitempty"`
}

// ExpenseInput is the payload accepted from the presentation layer.
// Amount arrives as number-or-string; Date is advisory only.
type ExpenseInput struct {
	Amount      any    `json:"amount"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Date        string `json:"date,omitempty"`
}

// ============================================================
// Categories
// ============================================================

// CategoryOther is the fallback for missing or unrecognized categories.
const CategoryOther = "Other"

// CategoryTag carries the presentation metadata attached to aggregates.
type CategoryTag struct {
	Color string
	Icon  string
}

// Categories is the fixed category set, in display order. Anything outside
// this set is coerced to Other at validation time.
var Categories = map[string]CategoryTag{
	"Food":          {Color: "#FF6B6B", Icon: "fast-food"},
	"Transport":     {Color: "#4ECDC4", Icon: "car"},
	"Shopping":      {Color: "#FFD93D", Icon: "cart"},
	"Bills":         {Color: "#6C5CE7", Icon: "document-text"},
	"Entertainment": {Color: "#FD79A8", Icon: "film"},
	"Health":        {Color: "#00B894", Icon: "medical"},
	"Education":     {Color: "#0984E3", Icon: "book"},
	CategoryOther:   {Color: "#8A8A8A", Icon: "ellipsis-horizontal"},
}

// NormalizeCategory coerces a free-form category to the fixed set.
func NormalizeCategory(category string) string {
	if _, ok := Categories[category]; ok {
		return category
	}
	return CategoryOther
}
