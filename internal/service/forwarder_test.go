package service_test

import (
	"testing"
	"time"

	"github.com/sachin12054/ai-expense-ledger-go/internal/domain"
	"github.com/sachin12054/ai-expense-ledger-go/internal/infra/observability"
	"github.com/sachin12054/ai-expense-ledger-go/internal/service"

	"go.uber.org/zap"
)

func TestForwarder_DrainsQueueOnShutdown(t *testing.T) {
	insights := &mockInsights{}
	fwd := service.NewForwarder(insights, 8, time.Second, observability.NewMetrics(), zap.NewNop())
	fwd.Start()

	fwd.EnqueueExpense(&domain.ExpenseRecord{ID: "exp-1", AccountID: "acct-1", Amount: 10})
	fwd.EnqueueBalance("acct-1", 90)
	fwd.Shutdown()

	insights.mu.Lock()
	defer insights.mu.Unlock()
	if len(insights.forwarded) != 2 {
		t.Fatalf("expected 2 forwards after drain, got %d", len(insights.forwarded))
	}
	if insights.forwarded[0] != "expense:exp-1" || insights.forwarded[1] != "balance:acct-1" {
		t.Errorf("unexpected forward order: %v", insights.forwarded)
	}
}

func TestForwarder_DropsWhenQueueFull(t *testing.T) {
	insights := &mockInsights{}
	fwd := service.NewForwarder(insights, 1, time.Second, observability.NewMetrics(), zap.NewNop())
	// Worker not started: the queue holds one job, the rest must drop
	// without blocking the caller.
	fwd.EnqueueBalance("acct-1", 10)
	fwd.EnqueueBalance("acct-1", 20)
	fwd.EnqueueBalance("acct-1", 30)

	fwd.Start()
	fwd.Shutdown()

	insights.mu.Lock()
	defer insights.mu.Unlock()
	if len(insights.forwarded) != 1 {
		t.Errorf("expected exactly 1 forward, got %d", len(insights.forwarded))
	}
}

func TestForwarder_ShutdownIdempotent(t *testing.T) {
	fwd := service.NewForwarder(&mockInsights{}, 1, time.Second, observability.NewMetrics(), zap.NewNop())
	fwd.Start()
	fwd.Shutdown()
	fwd.Shutdown() // second call must not panic
}
