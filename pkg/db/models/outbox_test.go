package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/repricer-backend/pkg/enums"
)

func TestOutboxEventDeadLetter(t *testing.T) {
	event := OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventPriceAdjusted,
		AggregateType: enums.AggregateBuyBoxStatus,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
		AttemptCount:  4,
	}
	failedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))

	entry := event.DeadLetter(enums.OutboxDLQReasonMaxAttempts, "publish timeout", failedAt)

	if entry.EventID != event.ID || entry.AggregateID != event.AggregateID {
		t.Fatalf("dlq entry must reference the source event")
	}
	if entry.AttemptCount != 4 || entry.ErrorReason != enums.OutboxDLQReasonMaxAttempts {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.ErrorMessage == nil || *entry.ErrorMessage != "publish timeout" {
		t.Fatalf("expected error message to be kept")
	}
	if entry.FailedAt.Location() != time.UTC || !entry.FailedAt.Equal(failedAt) {
		t.Fatalf("failed_at should be stored in UTC, got %v", entry.FailedAt)
	}
	if event.DeadLetter(enums.OutboxDLQReasonNonRetryable, "", failedAt).ErrorMessage != nil {
		t.Fatalf("blank message should stay nil")
	}
}

func TestOutboxEventIsPublished(t *testing.T) {
	var event OutboxEvent
	if event.IsPublished() {
		t.Fatalf("new event should be unpublished")
	}
	now := time.Now()
	event.PublishedAt = &now
	if !event.IsPublished() {
		t.Fatalf("event with published_at should be published")
	}
}
