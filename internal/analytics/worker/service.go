package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/repricer-backend/internal/analytics/router"
	"github.com/angelmondragon/repricer-backend/internal/analytics/types"
	"github.com/angelmondragon/repricer-backend/pkg/enums"
	"github.com/angelmondragon/repricer-backend/pkg/logger"
	"github.com/angelmondragon/repricer-backend/pkg/metrics"
	"github.com/angelmondragon/repricer-backend/pkg/outbox"
)

const analyticsConsumerName = "analytics"

const (
	outcomeHandled   = "handled"
	outcomeDuplicate = "duplicate"
	outcomeDropped   = "dropped"
	outcomeRetry     = "retry"
)

// Handler processes a decoded pricing envelope.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type idempotencyChecker interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type ServiceParams struct {
	Subscription receiver
	Handler      Handler
	Idempotency  idempotencyChecker
	Logger       *logger.Logger
	Metrics      *metrics.AnalyticsMetrics
}

// Service consumes pricing events from Pub/Sub. Each event id is handled at most once per
// claim window; a failed handler releases its claim so the redelivery can run.
type Service struct {
	subscription receiver
	handler      Handler
	manager      idempotencyChecker
	logg         *logger.Logger
	metrics      *metrics.AnalyticsMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Subscription == nil:
		return nil, errors.New("analytics subscription is required")
	case params.Handler == nil:
		return nil, errors.New("analytics handler is required")
	case params.Idempotency == nil:
		return nil, errors.New("idempotency manager is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	}
	return &Service{
		subscription: params.Subscription,
		handler:      params.Handler,
		manager:      params.Idempotency,
		logg:         params.Logger,
		metrics:      params.Metrics,
	}, nil
}

type processResult struct {
	outcome string
	nack    bool
}

// Run receives messages until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	return s.subscription.Receive(ctx, func(msgCtx context.Context, msg *gcppubsub.Message) {
		if s.process(msgCtx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	eventType := attribute(msg, "event_type")
	outcome := s.deliver(ctx, msg)
	s.metrics.IncMessage(eventType, outcome)
	return processResult{outcome: outcome, nack: outcome == outcomeRetry}
}

// deliver drops what can never succeed and retries only transient failures.
func (s *Service) deliver(ctx context.Context, msg *gcppubsub.Message) string {
	logCtx := s.logg.WithField(ctx, "message_id", msg.ID)

	envelope, err := buildEnvelope(msg)
	if err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "invalid analytics envelope")
		return outcomeDropped
	}
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"event_id":     envelope.EventID,
		"event_type":   envelope.EventType,
		"aggregate_id": envelope.AggregateID,
		"occurred_at":  envelope.OccurredAt.Format(time.RFC3339Nano),
	})
	if envelope.OrganizationID != "" {
		logCtx = s.logg.WithOrganizationID(logCtx, envelope.OrganizationID)
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		s.logg.Warn(logCtx, "invalid event id")
		return outcomeDropped
	}

	claimed, err := s.manager.Claim(logCtx, analyticsConsumerName, eventID)
	switch {
	case err != nil:
		s.logg.Error(logCtx, "idempotency check failed", err)
		return outcomeRetry
	case !claimed:
		s.logg.Info(logCtx, "event already processed")
		return outcomeDuplicate
	}

	err = s.handler.Handle(logCtx, *envelope)
	switch {
	case err == nil:
		s.logg.Info(logCtx, "analytics event handled")
		return outcomeHandled
	case errors.Is(err, router.ErrUnsupportedEventType):
		s.logg.Warn(logCtx, "unsupported analytics event")
		return outcomeDropped
	case errors.Is(err, router.ErrMalformedPayload):
		// The claim stays so redeliveries of the same bad payload are skipped.
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "malformed analytics payload dropped")
		return outcomeDropped
	}

	s.logg.Error(logCtx, "handler error", err)
	if relErr := s.manager.Release(logCtx, analyticsConsumerName, eventID); relErr != nil {
		s.logg.Error(logCtx, "failed to release idempotency key", relErr)
	}
	return outcomeRetry
}

func buildEnvelope(msg *gcppubsub.Message) (*types.Envelope, error) {
	stored, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		return nil, err
	}

	eventType, err := enums.ParseOutboxEventType(attribute(msg, "event_type"))
	if err != nil {
		return nil, fmt.Errorf("event_type: %w", err)
	}
	aggregateType, err := enums.ParseOutboxAggregateType(attribute(msg, "aggregate_type"))
	if err != nil {
		return nil, fmt.Errorf("aggregate_type: %w", err)
	}
	aggregateID := attribute(msg, "aggregate_id")
	if aggregateID == "" {
		return nil, errors.New("aggregate_id missing")
	}

	occurredAt := stored.OccurredAt
	if occurredAt.IsZero() {
		if parsed, err := time.Parse(time.RFC3339Nano, attribute(msg, "created_at")); err == nil {
			occurredAt = parsed
		}
	}

	eventID := strings.TrimSpace(stored.EventID)
	if eventID == "" {
		eventID = attribute(msg, "event_id")
	}
	if eventID == "" {
		return nil, errors.New("event_id missing")
	}

	organizationID := attribute(msg, "organization_id")
	if actorOrg := stored.OrganizationID(); organizationID == "" && actorOrg != uuid.Nil {
		organizationID = actorOrg.String()
	}

	return &types.Envelope{
		EventID:        eventID,
		EventType:      eventType,
		AggregateType:  aggregateType,
		AggregateID:    aggregateID,
		OrganizationID: organizationID,
		OccurredAt:     occurredAt.UTC(),
		Payload:        stored.Data,
	}, nil
}

func attribute(msg *gcppubsub.Message, key string) string {
	return strings.TrimSpace(msg.Attributes[key])
}
