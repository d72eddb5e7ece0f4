package observability

import (
	"time"

	"github.com/sachin12054/ai-expense-ledger-go/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the ledger service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	expensesRecorded *prometheus.CounterVec
	txConflicts      prometheus.Counter
	txFailures       prometheus.Counter
	syncFailures     *prometheus.CounterVec
	externalErrors   *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
}

// LedgerSnapshot is returned by GET /v1/metrics/ledger.
type LedgerSnapshot struct {
	ExpensesRecorded int64   `json:"expensesRecorded"`
	TxConflicts      int64   `json:"txConflicts"`
	TxFailures       int64   `json:"txFailures"`
	SyncFailures     int64   `json:"syncFailures"`
	CacheHitRate     float64 `json:"cacheHitRate"`
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		expensesRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_expenses_recorded_total",
				Help: "Total expenses recorded, by category.",
			},
			[]string{"category"},
		),
		txConflicts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_account_tx_conflicts_total",
				Help: "Optimistic account transactions retried after a version conflict.",
			},
		),
		txFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_account_tx_failures_total",
				Help: "Account transactions failed after exhausting retries.",
			},
		),
		syncFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_sync_failures_total",
				Help: "Best-effort forwards to the insights backend that failed.",
			},
			[]string{"kind"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExpenseRecorded counts a committed expense by category.
func (m *Metrics) IncrExpenseRecorded(category string) {
	m.expensesRecorded.WithLabelValues(category).Inc()
}

// IncrTxConflict counts an optimistic-concurrency retry.
func (m *Metrics) IncrTxConflict() {
	m.txConflicts.Inc()
}

// IncrTxFailure counts an account transaction that exhausted its retries.
func (m *Metrics) IncrTxFailure() {
	m.txFailures.Inc()
}

// IncrSyncFailure counts a failed best-effort forward ("expense"/"balance").
func (m *Metrics) IncrSyncFailure(kind string) {
	m.syncFailures.WithLabelValues(kind).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// GetLedgerSnapshot returns cumulative counter values for the
// GET /v1/metrics/ledger endpoint.
func (m *Metrics) GetLedgerSnapshot() *LedgerSnapshot {
	var recorded float64
	for category := range domain.Categories {
		recorded += getCounterValue(m.expensesRecorded, category)
	}

	hits := getCounterValue(m.cacheHits, "aggregates")
	misses := getCounterValue(m.cacheMisses, "aggregates")
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &LedgerSnapshot{
		ExpensesRecorded: int64(recorded),
		TxConflicts:      int64(getPlainCounterValue(m.txConflicts)),
		TxFailures:       int64(getPlainCounterValue(m.txFailures)),
		SyncFailures:     int64(getCounterValue(m.syncFailures, "expense") + getCounterValue(m.syncFailures, "balance")),
		CacheHitRate:     hitRate,
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func getPlainCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
