package router

import (
	"context"
	"fmt"

	"github.com/angelmondragon/repricer-backend/internal/analytics/types"
	"github.com/angelmondragon/repricer-backend/internal/analytics/writer"
	"github.com/angelmondragon/repricer-backend/pkg/logger"
	"github.com/angelmondragon/repricer-backend/pkg/outbox/payloads"
)

type priceAdjustedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newPriceAdjustedHandler(w Writer, logg *logger.Logger) Handler {
	return &priceAdjustedHandler{writer: w, logg: logg}
}

func (h *priceAdjustedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.PriceAdjustedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for %s", envelope.EventType)
	}
	logCtx := h.logg.WithProduct(ctx, event.ProductID, event.MarketplaceID)
	logCtx = h.logg.WithFields(logCtx, map[string]any{
		"rule_id":   event.RuleID.String(),
		"new_price": event.NewPrice.StringFixed(2),
	})

	encoded, err := writer.EncodeJSON(envelope.Payload)
	if err != nil {
		return err
	}
	row := baseRow(envelope, event.OrganizationID.String(), event.BuyBoxStatusID.String(), event.ProductID, event.MarketplaceID)
	row.RunID = stringPtr(event.RunID.String())
	row.RuleID = stringPtr(event.RuleID.String())
	row.RuleName = stringPtr(event.RuleName)
	row.Operation = stringPtr(string(event.Operation))
	row.OldPrice = event.OldPrice.Rat()
	row.NewPrice = event.NewPrice.Rat()
	row.Currency = stringPtr(string(event.Currency))
	row.Payload = encoded
	if !event.AppliedAt.IsZero() {
		row.OccurredAt = event.AppliedAt.UTC()
	}

	if err := h.writer.InsertPricingEvent(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert pricing event row", err)
		return err
	}
	h.logg.Info(logCtx, "price_adjusted row inserted")
	return nil
}
