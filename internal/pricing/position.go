package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/repricer-backend/pkg/enums"
	"github.com/angelmondragon/repricer-backend/pkg/types"
)

var hundred = decimal.NewFromInt(100)

// ComputeMarketPosition ranks the own listing against competitors by total price. The listing
// ranks ahead of competitors with an equal total, so rank is 1 plus the number of strictly
// cheaper competitors.
func ComputeMarketPosition(listing types.Listing, competitors types.CompetitorPrices) types.MarketPosition {
	own := listing.TotalPrice()
	position := types.MarketPosition{
		Rank:             1,
		TotalCompetitors: len(competitors),
	}
	if len(competitors) == 0 {
		position.IsCheapest = true
		return position
	}

	lowest := competitors[0].Price.Add(competitors[0].Shipping)
	for _, competitor := range competitors {
		total := competitor.Price.Add(competitor.Shipping)
		if total.LessThan(own) {
			position.Rank++
		}
		if total.LessThan(lowest) {
			lowest = total
		}
	}

	position.IsCheapest = position.Rank == 1
	position.PriceDifference = own.Sub(lowest).Round(2)
	if !lowest.IsZero() {
		position.PriceDifferencePercentage = own.Sub(lowest).Div(lowest).Mul(hundred).Round(2)
	}
	return position
}

// DetermineState derives the BuyBox state from the own listing and the competitor set.
func DetermineState(listing types.Listing, competitors types.CompetitorPrices) enums.BuyBoxState {
	if listing.IsInBuyBox {
		return enums.BuyBoxStateWon
	}
	if len(competitors) == 0 {
		return enums.BuyBoxStateNotApplicable
	}
	if _, ok := competitors.Winner(); ok {
		return enums.BuyBoxStateLost
	}
	return enums.BuyBoxStateUnknown
}
