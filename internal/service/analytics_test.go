package service_test

import (
	"testing"
	"time"

	"github.com/sachin12054/ai-expense-ledger-go/internal/domain"
	"github.com/sachin12054/ai-expense-ledger-go/internal/service"
)

func date(year int, month time.Month) time.Time {
	return time.Date(year, month, 15, 12, 0, 0, 0, time.UTC)
}

func TestDeriveCategoryBreakdown_Empty(t *testing.T) {
	got := service.DeriveCategoryBreakdown(nil)
	if len(got) != 0 {
		t.Errorf("expected empty breakdown, got %+v", got)
	}
}

func TestDeriveCategoryBreakdown_GroupsAndOrders(t *testing.T) {
	records := []domain.ExpenseRecord{
		{Category: "Food", Amount: 40},
		{Category: "Food", Amount: 10},
		{Category: "Transport", Amount: 50},
	}

	got := service.DeriveCategoryBreakdown(records)
	if len(got) != 2 {
		t.Fatalf("expected 2 aggregates, got %d", len(got))
	}

	// Equal sums keep first-encounter order: Food was seen before Transport.
	if got[0].Category != "Food" || got[0].Amount != 50 {
		t.Errorf("expected Food/50 first, got %s/%v", got[0].Category, got[0].Amount)
	}
	if got[1].Category != "Transport" || got[1].Amount != 50 {
		t.Errorf("expected Transport/50 second, got %s/%v", got[1].Category, got[1].Amount)
	}
	if got[0].Percentage != 50 || got[1].Percentage != 50 {
		t.Errorf("expected 50/50 percentages, got %d/%d", got[0].Percentage, got[1].Percentage)
	}
}

func TestDeriveCategoryBreakdown_DescendingByAmount(t *testing.T) {
	records := []domain.ExpenseRecord{
		{Category: "Bills", Amount: 5},
		{Category: "Shopping", Amount: 80},
		{Category: "Health", Amount: 15},
	}

	got := service.DeriveCategoryBreakdown(records)
	if got[0].Category != "Shopping" || got[1].Category != "Health" || got[2].Category != "Bills" {
		t.Errorf("unexpected order: %s, %s, %s", got[0].Category, got[1].Category, got[2].Category)
	}
	if got[0].Percentage != 80 {
		t.Errorf("expected Shopping at 80%%, got %d", got[0].Percentage)
	}
}

func TestDeriveCategoryBreakdown_UnknownCountsAsOther(t *testing.T) {
	records := []domain.ExpenseRecord{
		{Category: "Rockets", Amount: 30},
		{Category: "", Amount: 20},
		{Category: "Food", Amount: 50},
	}

	got := service.DeriveCategoryBreakdown(records)
	if len(got) != 2 {
		t.Fatalf("expected 2 aggregates, got %d", len(got))
	}
	if got[0].Category != domain.CategoryOther || got[0].Amount != 50 {
		t.Errorf("expected Other/50 first, got %s/%v", got[0].Category, got[0].Amount)
	}
}

func TestDeriveCategoryBreakdown_CarriesTags(t *testing.T) {
	got := service.DeriveCategoryBreakdown([]domain.ExpenseRecord{{Category: "Food", Amount: 10}})
	tag := domain.Categories["Food"]
	if got[0].Color != tag.Color || got[0].Icon != tag.Icon {
		t.Errorf("expected Food tag %+v, got color=%q icon=%q", tag, got[0].Color, got[0].Icon)
	}
}

func TestDeriveSpendingTrend_Empty(t *testing.T) {
	got := service.DeriveSpendingTrend(nil)
	if len(got) != 0 {
		t.Errorf("expected empty trend, got %+v", got)
	}
}

func TestDeriveSpendingTrend_GroupsByMonth(t *testing.T) {
	records := []domain.ExpenseRecord{
		{Amount: 30, Date: date(2026, time.August)},
		{Amount: 20, Date: date(2026, time.August)},
		{Amount: 15, Date: date(2026, time.July)},
	}

	got := service.DeriveSpendingTrend(records)
	if len(got) != 2 {
		t.Fatalf("expected 2 points, got %d", len(got))
	}
	if got[0].Label != "Aug 2026" || got[0].Amount != 50 {
		t.Errorf("expected Aug 2026/50, got %s/%v", got[0].Label, got[0].Amount)
	}
	if got[1].Label != "Jul 2026" || got[1].Amount != 15 {
		t.Errorf("expected Jul 2026/15, got %s/%v", got[1].Label, got[1].Amount)
	}
}

func TestDeriveSpendingTrend_DistinguishesYears(t *testing.T) {
	records := []domain.ExpenseRecord{
		{Amount: 10, Date: date(2026, time.January)},
		{Amount: 20, Date: date(2025, time.January)},
	}

	got := service.DeriveSpendingTrend(records)
	if len(got) != 2 {
		t.Fatalf("expected separate points per year, got %d", len(got))
	}
	if got[0].Label != "Jan 2026" || got[1].Label != "Jan 2025" {
		t.Errorf("unexpected labels: %s, %s", got[0].Label, got[1].Label)
	}
}
