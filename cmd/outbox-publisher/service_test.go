package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/repricer-backend/pkg/config"
	"github.com/angelmondragon/repricer-backend/pkg/db/models"
	"github.com/angelmondragon/repricer-backend/pkg/enums"
	"github.com/angelmondragon/repricer-backend/pkg/logger"
	"github.com/angelmondragon/repricer-backend/pkg/metrics"
	"github.com/angelmondragon/repricer-backend/pkg/outbox"
	"github.com/angelmondragon/repricer-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/repricer-backend/pkg/outbox/registry"
)

const testTopic = "repricer-pricing-events"

func TestProcessBatchContinuesAfterTransientFailure(t *testing.T) {
	org := uuid.New()
	repo := &fakeRepo{events: []models.OutboxEvent{
		priceAdjustedRow(t, org, 0),
		priceAdjustedRow(t, org, 0),
	}}
	pub := &fakePublisher{results: []publishResult{
		fakePublishResult{err: errors.New("transient")},
		fakePublishResult{},
	}}
	dlq := &fakeDLQRepo{}
	service := newTestService(t, repo, pub, dlq, config.OutboxConfig{MaxAttempts: 5})

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if processed != 2 {
		t.Fatalf("expected 2 rows processed, got %d", processed)
	}
	if len(repo.failed) != 1 || repo.failed[0] != repo.events[0].ID {
		t.Fatalf("expected first row marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != repo.events[1].ID {
		t.Fatalf("expected second row published, got %v", repo.published)
	}
	if len(dlq.entries) != 0 {
		t.Fatalf("transient failure must not dead-letter")
	}
}

func TestPublishSetsMessageAttributes(t *testing.T) {
	org := uuid.New()
	event := priceAdjustedRow(t, org, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	service := newTestService(t, repo, pub, &fakeDLQRepo{}, config.OutboxConfig{})

	var topics []string
	service.publisherFor = func(topic string) publisher {
		topics = append(topics, topic)
		return pub
	}

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if len(topics) != 1 || topics[0] != testTopic {
		t.Fatalf("expected publish to %s, got %v", testTopic, topics)
	}
	if len(pub.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(pub.messages))
	}
	msg := pub.messages[0]
	if !bytes.Equal(msg.Data, event.Payload) {
		t.Fatalf("message data must be the stored envelope")
	}
	want := map[string]string{
		"event_type":      string(enums.EventPriceAdjusted),
		"aggregate_type":  string(enums.AggregateBuyBoxStatus),
		"aggregate_id":    event.AggregateID.String(),
		"organization_id": org.String(),
		"source":          "repricing",
	}
	for key, value := range want {
		if msg.Attributes[key] != value {
			t.Fatalf("attribute %s: expected %q got %q", key, value, msg.Attributes[key])
		}
	}
	if msg.Attributes["event_id"] == "" {
		t.Fatalf("expected event_id attribute")
	}
}

func TestProcessBatchDeadLettersUnresolvableRows(t *testing.T) {
	event := priceAdjustedRow(t, uuid.New(), 0)
	event.EventType = "order_created"
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQRepo{}
	reg := prometheus.NewRegistry()
	service := newTestService(t, repo, &fakePublisher{}, dlq, config.OutboxConfig{})
	service.metrics = metrics.NewOutboxMetrics(reg)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if len(dlq.entries) != 1 {
		t.Fatalf("expected one dlq entry, got %d", len(dlq.entries))
	}
	entry := dlq.entries[0]
	if entry.EventID != event.ID || !bytes.Equal(entry.Payload, event.Payload) {
		t.Fatalf("dlq entry does not mirror the row: %+v", entry)
	}
	if entry.ErrorReason != enums.OutboxDLQReasonUnroutable {
		t.Fatalf("unexpected reason %s", entry.ErrorReason)
	}
	if len(repo.terminal) != 1 || repo.terminalAttempts != service.maxAttempts {
		t.Fatalf("expected row marked terminal with max attempts")
	}
	if got := outboxCounter(t, reg, "dead_lettered"); got != 1 {
		t.Fatalf("expected dead_lettered=1, got %v", got)
	}
}

func TestProcessBatchDeadLettersAtMaxAttempts(t *testing.T) {
	event := priceAdjustedRow(t, uuid.New(), 1)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("deadline exceeded")}}}
	dlq := &fakeDLQRepo{}
	service := newTestService(t, repo, pub, dlq, config.OutboxConfig{MaxAttempts: 2})

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if len(dlq.entries) != 1 {
		t.Fatalf("expected dlq entry, got %d", len(dlq.entries))
	}
	if dlq.entries[0].ErrorReason != enums.OutboxDLQReasonMaxAttempts {
		t.Fatalf("unexpected reason %s", dlq.entries[0].ErrorReason)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("terminal row must not also be marked failed")
	}
}

func TestProcessBatchMissingPublisherIsTerminal(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{priceAdjustedRow(t, uuid.New(), 0)}}
	dlq := &fakeDLQRepo{}
	service := newTestService(t, repo, nil, dlq, config.OutboxConfig{})
	service.publisherFor = func(string) publisher { return nil }

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if len(dlq.entries) != 1 || dlq.entries[0].ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("expected non-retryable dlq entry, got %+v", dlq.entries)
	}
}

func TestProcessBatchBookkeepingErrorAbortsBatch(t *testing.T) {
	repo := &fakeRepo{
		events:     []models.OutboxEvent{priceAdjustedRow(t, uuid.New(), 0)},
		publishErr: errors.New("connection reset"),
	}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	service := newTestService(t, repo, pub, &fakeDLQRepo{}, config.OutboxConfig{})

	if _, err := service.processBatch(context.Background()); err == nil {
		t.Fatal("expected mark published error to abort the batch")
	}
}

func TestNewServiceDefaults(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakePublisher{}, &fakeDLQRepo{}, config.OutboxConfig{})
	if service.batchSize != defaultBatchSize || service.maxAttempts != defaultMaxAttempts || service.pollInterval != defaultPollInterval {
		t.Fatalf("unexpected defaults: batch=%d attempts=%d poll=%s", service.batchSize, service.maxAttempts, service.pollInterval)
	}
	if _, err := NewService(ServiceParams{Logger: testLogger()}); err == nil {
		t.Fatal("expected missing dependency error")
	}
}

func TestNextBackoffCaps(t *testing.T) {
	base := 500 * time.Millisecond
	if got := nextBackoff(0, base, maxBackoff); got != time.Second {
		t.Fatalf("expected 1s, got %s", got)
	}
	if got := nextBackoff(8*time.Second, base, maxBackoff); got != maxBackoff {
		t.Fatalf("expected cap %s, got %s", maxBackoff, got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakePublisher{}, &fakeDLQRepo{}, config.OutboxConfig{PollIntervalMS: 10})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := service.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func newTestService(t *testing.T, repo outboxRepository, pub publisher, dlq dlqRepository, cfg config.OutboxConfig) *Service {
	t.Helper()
	eventRegistry, err := registry.NewEventRegistry(config.PubSubConfig{PricingTopic: testTopic})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	service, err := NewService(ServiceParams{
		Config:           cfg,
		Logger:           testLogger(),
		DB:               fakeDB{},
		PubSub:           fakePubSubClient{},
		Repository:       repo,
		DLQRepository:    dlq,
		Registry:         eventRegistry,
		PublisherFactory: func(string) publisher { return pub },
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard})
}

func priceAdjustedRow(t *testing.T, org uuid.UUID, attempts int) models.OutboxEvent {
	t.Helper()
	statusID := uuid.New()
	data, err := json.Marshal(payloads.PriceAdjustedEvent{
		OrganizationID: org,
		BuyBoxStatusID: statusID,
		ProductID:      "sku-1",
		MarketplaceID:  "amazon-us",
		RunID:          uuid.New(),
		AdjustmentID:   uuid.New(),
		RuleID:         uuid.New(),
		RuleName:       "beat lowest by 1",
		Operation:      enums.OperationBeatBy,
		OldPrice:       decimal.RequireFromString("55"),
		NewPrice:       decimal.RequireFromString("44"),
		Currency:       enums.CurrencyUSD,
		AppliedAt:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    outbox.CurrentVersion,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Actor:      &outbox.ActorRef{OrganizationID: org, Source: "repricing"},
		Data:       data,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventPriceAdjusted,
		AggregateType: enums.AggregateBuyBoxStatus,
		AggregateID:   statusID,
		Payload:       envelope,
		AttemptCount:  attempts,
		CreatedAt:     time.Now().UTC(),
	}
}

func outboxCounter(t *testing.T, reg *prometheus.Registry, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != "repricer_outbox_events_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == outcome {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

type fakeRepo struct {
	events           []models.OutboxEvent
	published        []uuid.UUID
	failed           []uuid.UUID
	terminal         []uuid.UUID
	terminalAttempts int
	publishErr       error
}

func (f *fakeRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	f.terminal = append(f.terminal, id)
	f.terminalAttempts = terminalAttempts
	return nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct{}

func (fakePubSubClient) Ping(context.Context) error { return nil }

func (fakePubSubClient) Publisher(string) *gcppubsub.Publisher { return nil }

type fakePublisher struct {
	results  []publishResult
	messages []*gcppubsub.Message
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "", f.err
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}
