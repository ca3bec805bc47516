package pricing

import (
	"sort"

	"github.com/angelmondragon/repricer-backend/pkg/db/models"
	"github.com/angelmondragon/repricer-backend/pkg/enums"
)

// SelectWinner picks the executed adjustment with the highest new price. adjustments must be in
// rule priority order; on equal prices the earliest one wins.
func SelectWinner(adjustments []models.PriceAdjustment) (models.PriceAdjustment, bool) {
	var (
		winner models.PriceAdjustment
		found  bool
	)
	for _, adj := range adjustments {
		if adj.Status != enums.AdjustmentExecuted {
			continue
		}
		if !found || adj.NewPrice.GreaterThan(winner.NewPrice) {
			winner = adj
			found = true
		}
	}
	return winner, found
}

// RuleApplies reports whether the rule's product and marketplace scope covers the pair.
func RuleApplies(rule models.RepricingRule, productID, marketplaceID string) bool {
	if !rule.ApplyToAllProducts && !contains(rule.ProductIDs, productID) {
		return false
	}
	if !rule.ApplyToAllMarketplaces && !contains(rule.MarketplaceIDs, marketplaceID) {
		return false
	}
	return true
}

// SortByPriority orders rules by ascending priority, oldest first within a priority.
func SortByPriority(rules []models.RepricingRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].CreatedAt.Before(rules[j].CreatedAt)
	})
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
