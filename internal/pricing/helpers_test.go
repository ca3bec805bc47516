package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/repricer-backend/pkg/db/models"
	"github.com/angelmondragon/repricer-backend/pkg/enums"
	"github.com/angelmondragon/repricer-backend/pkg/types"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func nullDec(value string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(value))
}

func competitor(id, total string, winner bool) types.CompetitorPrice {
	c := types.NewCompetitorPrice(id, "", dec(total), decimal.Zero)
	c.IsBuyBoxWinner = winner
	return c
}

func newStatus(price string, competitors ...types.CompetitorPrice) models.BuyBoxStatus {
	return models.BuyBoxStatus{
		ID:                 uuid.New(),
		OrganizationID:     uuid.New(),
		ProductID:          "sku-1",
		MarketplaceID:      "amazon-us",
		CurrentPrice:       dec(price),
		CurrentShipping:    decimal.Zero,
		Currency:           enums.CurrencyUSD,
		IsMonitored:        true,
		MonitoringInterval: 60,
		Competitors:        competitors,
	}
}

func newRule(op enums.RepricingOperation, target enums.TargetCompetitor, value string) models.RepricingRule {
	return models.RepricingRule{
		ID:                     uuid.New(),
		Name:                   string(op),
		ApplyToAllProducts:     true,
		ApplyToAllMarketplaces: true,
		Operation:              op,
		TargetCompetitor:       target,
		Value:                  dec(value),
		Priority:               1,
		IsActive:               true,
	}
}
