package handler

import (
	"net/http"
	"time"

	"github.com/sachin12054/ai-expense-ledger-go/internal/infra/observability"
	"github.com/sachin12054/ai-expense-ledger-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// Every /v1 route requires a valid bearer token; the authenticated account
// ID comes from the token subject, never from the client payload.
func NewRouter(svc *service.LedgerService, verifier *service.TokenVerifier, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(JWTAuthMiddleware(verifier, logger))

		// Operational counters as JSON, for the mobile debug screen.
		r.Get("/metrics/ledger", ledgerMetricsHandler(metrics))

		r.Route("/accounts/{accountId}", func(r chi.Router) {
			// Account profile
			r.Get("/", getAccountHandler(svc, logger))
			r.Post("/", ensureAccountHandler(svc, logger))
			r.Patch("/", updateProfileHandler(svc, logger))

			// Expenses
			r.Get("/expenses", listExpensesHandler(svc, logger))
			r.Post("/expenses", recordExpenseHandler(svc, metrics, logger))

			// Balance
			r.Post("/balance", adjustBalanceHandler(svc, metrics, logger))

			// Derived views
			r.Get("/overview", overviewHandler(svc, logger))
			r.Get("/analytics/categories", categoryBreakdownHandler(svc, logger))
			r.Get("/analytics/trend", spendingTrendHandler(svc, logger))

			// AI insights pass-through
			r.Get("/insights", insightsHandler(svc, logger))
		})
	})

	return r
}

// ============================================================
// Operational endpoints
// ============================================================

func healthzHandler(svc *service.LedgerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		// A not-found answer still proves the document store is reachable.
		status := "healthy"
		var latency int64
		if svc != nil {
			start := time.Now()
			_, err := svc.GetAccount(r.Context(), "health-check")
			latency = time.Since(start).Milliseconds()
			if err != nil && !isNotFound(err) {
				status = "degraded"
			}
		}

		code := http.StatusOK
		if status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{
			"status":      status,
			"storeLatMs":  latency,
			"lastChecked": now,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func ledgerMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetLedgerSnapshot())
	}
}
