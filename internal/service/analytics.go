package service

import (
	"context"
	"math"
	"sort"

	"github.com/sachin12054/ai-expense-ledger-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Aggregate derivations
// ============================================================
//
// Both derivations are pure functions over a full expense snapshot. They are
// recomputed wholesale on every change notification — no incremental state —
// so they stay trivially testable without a live store.

// DeriveCategoryBreakdown groups the snapshot by category, sums amounts and
// computes each group's share of the total. Records with a missing or
// unknown category count toward Other. Output is ordered descending by sum;
// ties keep first-encounter order, so a fixed input yields a fixed output.
func DeriveCategoryBreakdown(records []domain.ExpenseRecord) []domain.CategoryAggregate {
	type group struct {
		amount float64
		order  int
	}

	groups := make(map[string]*group)
	var total float64
	seen := 0

	for _, rec := range records {
		category := domain.NormalizeCategory(rec.Category)
		g, ok := groups[category]
		if !ok {
			g = &group{order: seen}
			seen++
			groups[category] = g
		}
		g.amount += rec.Amount
		total += rec.Amount
	}

	// Guards the empty snapshot: percentages come out 0 instead of NaN.
	denominator := total
	if denominator == 0 {
		denominator = 1
	}

	out := make([]domain.CategoryAggregate, 0, len(groups))
	for category, g := range groups {
		tag := domain.Categories[category]
		out = append(out, domain.CategoryAggregate{
			Category:   category,
			Amount:     g.amount,
			Percentage: int(math.Round(g.amount / denominator * 100)),
			Color:      tag.Color,
			Icon:       tag.Icon,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return groups[out[i].Category].order < groups[out[j].Category].order
	})

	return out
}

// DeriveSpendingTrend groups the snapshot by calendar month of each record's
// authoritative timestamp and sums per period. Period order follows the
// first-encounter order of the input sequence: the store already delivers
// most-recent-first and that ordering is preserved, not re-sorted.
func DeriveSpendingTrend(records []domain.ExpenseRecord) []domain.TrendPoint {
	index := make(map[string]int)
	out := make([]domain.TrendPoint, 0)

	for _, rec := range records {
		label := rec.Date.Format("Jan 2006")
		i, ok := index[label]
		if !ok {
			i = len(out)
			index[label] = i
			out = append(out, domain.TrendPoint{Label: label})
		}
		out[i].Amount += rec.Amount
	}

	return out
}

// ============================================================
// Service wrappers
// ============================================================

// GetCategoryBreakdown returns the account's current category breakdown,
// served from the watcher cache when fresh.
func (s *LedgerService) GetCategoryBreakdown(ctx context.Context, accountID string) ([]domain.CategoryAggregate, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.GetCategoryBreakdown")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	agg, err := s.aggregates(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return agg.Categories, nil
}

// GetSpendingTrend returns the account's current per-month spending trend.
func (s *LedgerService) GetSpendingTrend(ctx context.Context, accountID string) ([]domain.TrendPoint, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.GetSpendingTrend")
	defer span.End()

	agg, err := s.aggregates(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return agg.Trend, nil
}

func (s *LedgerService) aggregates(ctx context.Context, accountID string) (*domain.AccountAggregates, error) {
	if s.aggCache != nil {
		if agg, ok := s.aggCache.Get(accountID); ok {
			s.metrics.IncrCacheHit("aggregates")
			return &agg, nil
		}
		s.metrics.IncrCacheMiss("aggregates")
	}

	records, err := s.store.ListExpenses(ctx, accountID, 0)
	if err != nil {
		return nil, err
	}

	agg := domain.AccountAggregates{
		Categories: DeriveCategoryBreakdown(records),
		Trend:      DeriveSpendingTrend(records),
	}
	if s.aggCache != nil {
		s.aggCache.Set(accountID, agg)
	}
	return &agg, nil
}
