package router

import (
	"context"
	"fmt"

	"github.com/angelmondragon/repricer-backend/internal/analytics/types"
	"github.com/angelmondragon/repricer-backend/internal/analytics/writer"
	"github.com/angelmondragon/repricer-backend/pkg/logger"
	"github.com/angelmondragon/repricer-backend/pkg/outbox/payloads"
)

type stateChangedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newStateChangedHandler(w Writer, logg *logger.Logger) Handler {
	return &stateChangedHandler{writer: w, logg: logg}
}

func (h *stateChangedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.BuyBoxStateChangedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for %s", envelope.EventType)
	}
	logCtx := h.logg.WithProduct(ctx, event.ProductID, event.MarketplaceID)
	logCtx = h.logg.WithFields(logCtx, map[string]any{
		"previous_state": event.PreviousState,
		"state":          event.State,
	})

	encoded, err := writer.EncodeJSON(envelope.Payload)
	if err != nil {
		return err
	}
	row := baseRow(envelope, event.OrganizationID.String(), event.BuyBoxStatusID.String(), event.ProductID, event.MarketplaceID)
	row.NewPrice = event.CurrentPrice.Rat()
	row.PreviousState = stringPtr(string(event.PreviousState))
	row.State = stringPtr(string(event.State))
	row.WinnerID = event.WinnerID
	row.Payload = encoded
	if !event.ObservedAt.IsZero() {
		row.OccurredAt = event.ObservedAt.UTC()
	}

	if err := h.writer.InsertPricingEvent(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert pricing event row", err)
		return err
	}
	h.logg.Info(logCtx, "buybox_state_changed row inserted")
	return nil
}
