package pricing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/angelmondragon/repricer-backend/pkg/db/models"
	"github.com/angelmondragon/repricer-backend/pkg/enums"
)

func adjustment(status enums.AdjustmentStatus, price string) models.PriceAdjustment {
	return models.PriceAdjustment{RuleID: uuid.New(), Status: status, NewPrice: dec(price)}
}

func TestSelectWinnerPrefersHighestExecuted(t *testing.T) {
	a := adjustment(enums.AdjustmentExecuted, "100")
	b := adjustment(enums.AdjustmentExecuted, "105")
	skipped := adjustment(enums.AdjustmentSkipped, "200")

	winner, ok := SelectWinner([]models.PriceAdjustment{a, skipped, b})
	if !ok {
		t.Fatal("expected a winner")
	}
	if winner.RuleID != b.RuleID {
		t.Fatalf("expected the lower priority rule with the higher price to win")
	}
}

func TestSelectWinnerTieKeepsPriorityOrder(t *testing.T) {
	first := adjustment(enums.AdjustmentExecuted, "100")
	second := adjustment(enums.AdjustmentExecuted, "100")

	winner, _ := SelectWinner([]models.PriceAdjustment{first, second})
	if winner.RuleID != first.RuleID {
		t.Fatal("expected the first executed adjustment to win a tie")
	}
}

func TestSelectWinnerNoneExecuted(t *testing.T) {
	_, ok := SelectWinner([]models.PriceAdjustment{
		adjustment(enums.AdjustmentSkipped, "1"),
		adjustment(enums.AdjustmentFailed, "2"),
	})
	if ok {
		t.Fatal("expected no winner")
	}
	if _, ok := SelectWinner(nil); ok {
		t.Fatal("expected no winner for empty input")
	}
}

func TestRuleApplies(t *testing.T) {
	scoped := models.RepricingRule{
		ProductIDs:     pq.StringArray{"sku-1", "sku-2"},
		MarketplaceIDs: pq.StringArray{"amazon-us"},
	}
	if !RuleApplies(scoped, "sku-2", "amazon-us") {
		t.Fatal("expected scoped rule to apply")
	}
	if RuleApplies(scoped, "sku-3", "amazon-us") {
		t.Fatal("expected product outside scope to be excluded")
	}
	if RuleApplies(scoped, "sku-1", "ebay") {
		t.Fatal("expected marketplace outside scope to be excluded")
	}

	global := models.RepricingRule{ApplyToAllProducts: true, ApplyToAllMarketplaces: true}
	if !RuleApplies(global, "anything", "anywhere") {
		t.Fatal("expected global rule to apply")
	}
}

func TestSortByPriority(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rules := []models.RepricingRule{
		{Name: "late", Priority: 2, CreatedAt: base},
		{Name: "newer", Priority: 1, CreatedAt: base.Add(time.Hour)},
		{Name: "older", Priority: 1, CreatedAt: base},
	}
	SortByPriority(rules)
	got := []string{rules[0].Name, rules[1].Name, rules[2].Name}
	want := []string{"older", "newer", "late"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
