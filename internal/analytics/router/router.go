package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/repricer-backend/internal/analytics/types"
	"github.com/angelmondragon/repricer-backend/pkg/enums"
	"github.com/angelmondragon/repricer-backend/pkg/logger"
	"github.com/angelmondragon/repricer-backend/pkg/outbox/payloads"
)

var (
	ErrUnsupportedEventType = errors.New("unsupported analytics event type")
	// ErrMalformedPayload marks a payload that can never decode; redelivery will not help.
	ErrMalformedPayload = errors.New("malformed analytics payload")
)

// Writer delivers BigQuery rows produced by the handlers.
type Writer interface {
	InsertPricingEvent(ctx context.Context, row types.PricingEventRow) error
}

// Handler receives an envelope plus its decoded payload.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

type route struct {
	decode  func(json.RawMessage) (any, error)
	handler Handler
}

// routeTo decodes payloads into a fresh T before calling h.
func routeTo[T any](h Handler) route {
	return route{
		decode: func(raw json.RawMessage) (any, error) {
			payload := new(T)
			if err := json.Unmarshal(raw, payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
		handler: h,
	}
}

// Router dispatches pricing envelopes by event type.
type Router struct {
	routes map[enums.OutboxEventType]route
	logg   *logger.Logger
}

// NewRouter wires the default handlers. An override replaces the handler of a known event
// and is ignored for unknown ones.
func NewRouter(writer Writer, logg *logger.Logger, overrides map[enums.OutboxEventType]Handler) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	routes := map[enums.OutboxEventType]route{
		enums.EventPriceAdjusted:      routeTo[payloads.PriceAdjustedEvent](newPriceAdjustedHandler(writer, logg)),
		enums.EventBuyBoxStateChanged: routeTo[payloads.BuyBoxStateChangedEvent](newStateChangedHandler(writer, logg)),
	}
	for event, custom := range overrides {
		if r, ok := routes[event]; ok && custom != nil {
			r.handler = custom
			routes[event] = r
		}
	}
	return &Router{routes: routes, logg: logg}, nil
}

func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	rt, ok := r.routes[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("%w: empty %s payload", ErrMalformedPayload, envelope.EventType)
	}
	payload, err := rt.decode(envelope.Payload)
	if err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrMalformedPayload, envelope.EventType, err)
	}
	return rt.handler.Handle(ctx, envelope, payload)
}
