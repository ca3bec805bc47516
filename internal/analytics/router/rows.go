package router

import "github.com/angelmondragon/repricer-backend/internal/analytics/types"

func baseRow(envelope types.Envelope, organizationID, statusID, productID, marketplaceID string) types.PricingEventRow {
	return types.PricingEventRow{
		EventID:        envelope.EventID,
		EventType:      string(envelope.EventType),
		OccurredAt:     envelope.OccurredAt.UTC(),
		OrganizationID: organizationID,
		BuyBoxStatusID: statusID,
		ProductID:      productID,
		MarketplaceID:  marketplaceID,
	}
}

func stringPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
