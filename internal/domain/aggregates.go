package domain

// ============================================================
// Derived aggregates (never persisted)
// ============================================================

// CategoryAggregate is one slice of the category breakdown, recomputed from
// the live expense snapshot on every change notification.
type CategoryAggregate struct {
	Category   string  `json:"category"`
	Amount     float64 `json:"amount"`
	Percentage int     `json:"percentage"`
	Color      string  `json:"color"`
	Icon       string  `json:"icon"`
}

// TrendPoint is the summed spending for one calendar month.
type TrendPoint struct {
	Label  string  `json:"label"` // e.g. "Jan 2026"
	Amount float64 `json:"amount"`
}

// AccountAggregates bundles both derivations for one account, as cached by
// the aggregate watcher between change notifications.
type AccountAggregates struct {
	Categories []CategoryAggregate `json:"categories"`
	Trend      []TrendPoint        `json:"trend"`
}

// Overview is the dashboard payload: profile plus both derivations and the
// most recent records.
type Overview struct {
	Account    *Account            `json:"account"`
	Categories []CategoryAggregate `json:"categories"`
	Trend      []TrendPoint        `json:"trend"`
	Recent     []ExpenseRecord     `json:"recent"`
}
