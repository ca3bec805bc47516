package pricing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/repricer-backend/pkg/db/models"
	"github.com/angelmondragon/repricer-backend/pkg/enums"
	"github.com/angelmondragon/repricer-backend/pkg/types"
)

// AggregateCompetitorID identifies the synthesized competitor built for the "all" strategy.
const AggregateCompetitorID = "aggregate:all"

// SelectTarget resolves the comparison price point for rule. The boolean is false when there are
// no competitors or the strategy cannot resolve one; callers skip the rule in that case.
func SelectTarget(status models.BuyBoxStatus, rule models.RepricingRule) (types.CompetitorPrice, bool) {
	competitors := status.Competitors
	if len(competitors) == 0 {
		return types.CompetitorPrice{}, false
	}

	switch rule.TargetCompetitor {
	case enums.TargetLowest:
		return byTotal(competitors, false), true
	case enums.TargetHighest:
		return byTotal(competitors, true), true
	case enums.TargetBuyBoxWinner:
		winner, ok := competitors.Winner()
		if ok {
			winner.Normalize()
		}
		return winner, ok
	case enums.TargetSpecific:
		if rule.SpecificCompetitorID == nil || *rule.SpecificCompetitorID == "" {
			return types.CompetitorPrice{}, false
		}
		for _, competitor := range competitors {
			if competitor.CompetitorID == *rule.SpecificCompetitorID {
				competitor.Normalize()
				return competitor, true
			}
		}
		return types.CompetitorPrice{}, false
	case enums.TargetAll:
		return averageCompetitor(competitors, status.Currency), true
	default:
		return types.CompetitorPrice{}, false
	}
}

func byTotal(competitors types.CompetitorPrices, descending bool) types.CompetitorPrice {
	sorted := competitors.Normalized()
	sort.SliceStable(sorted, func(i, j int) bool {
		if descending {
			return sorted[i].TotalPrice.GreaterThan(sorted[j].TotalPrice)
		}
		return sorted[i].TotalPrice.LessThan(sorted[j].TotalPrice)
	})
	return sorted[0]
}

// averageCompetitor folds shipping into the mean, so the synthesized shipping is zero.
func averageCompetitor(competitors types.CompetitorPrices, currency enums.Currency) types.CompetitorPrice {
	sum := decimal.Zero
	for _, competitor := range competitors {
		sum = sum.Add(competitor.Price.Add(competitor.Shipping))
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(competitors))))

	aggregate := types.NewCompetitorPrice(
		AggregateCompetitorID,
		fmt.Sprintf("average of %d competitors", len(competitors)),
		mean,
		decimal.Zero,
	)
	aggregate.Currency = string(currency)
	aggregate.IsBuyBoxWinner = false
	return aggregate
}
