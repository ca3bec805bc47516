package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/repricer-backend/pkg/db/models"
	"github.com/angelmondragon/repricer-backend/pkg/enums"
	"github.com/angelmondragon/repricer-backend/pkg/logger"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	events := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	dlq := `
CREATE TABLE IF NOT EXISTS outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(events).Error)
	require.NoError(t, db.Exec(dlq).Error)
	return db
}

func testEvent(data any) DomainEvent {
	return DomainEvent{
		EventType:     enums.EventPriceAdjusted,
		AggregateType: enums.AggregateBuyBoxStatus,
		AggregateID:   uuid.New(),
		Data:          data,
	}
}

func TestEmitWritesEnvelope(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), logger.New(logger.Options{ServiceName: "outbox-test"}))
	org := uuid.New()
	event := testEvent(map[string]string{"product_id": "sku-1"})
	event.Actor = &ActorRef{OrganizationID: org, Source: "repricing"}

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, event)
	}))

	var rows []models.OutboxEvent
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, event.AggregateID, rows[0].AggregateID)
	assert.NotEqual(t, uuid.Nil, rows[0].ID)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, CurrentVersion, envelope.Version)
	assert.Equal(t, rows[0].ID.String(), envelope.EventID)
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, org, envelope.Actor.OrganizationID)
	assert.JSONEq(t, `{"product_id":"sku-1"}`, string(envelope.Data))
}

func TestEmitRejectsInvalidEvents(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)

	missingAggregate := testEvent(nil)
	missingAggregate.AggregateID = uuid.Nil
	badType := testEvent(nil)
	badType.EventType = "price_guessed"

	for _, event := range []DomainEvent{missingAggregate, badType} {
		err := db.Transaction(func(tx *gorm.DB) error {
			return svc.Emit(context.Background(), tx, event)
		})
		require.Error(t, err)
	}
	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	err := svc.Emit(context.Background(), nil, testEvent(nil))
	require.Error(t, err)
}

func TestEmitRolledBackWithTransaction(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, testEvent(1)); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ids := make([]uuid.UUID, 3)
	for i := range ids {
		ids[i] = uuid.New()
		require.NoError(t, repo.Insert(db, models.OutboxEvent{
			ID:            ids[i],
			EventType:     enums.EventPriceAdjusted,
			AggregateType: enums.AggregateBuyBoxStatus,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}))
	}

	rows, err := repo.FetchUnpublishedForPublish(db, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ids[0], rows[0].ID)

	require.NoError(t, repo.MarkPublishedTx(db, ids[0]))
	require.NoError(t, repo.MarkFailedTx(db, ids[1], errors.New("unavailable")))
	require.NoError(t, repo.MarkTerminalTx(db, ids[2], errors.New("bad payload"), 3))

	rows, err = repo.FetchUnpublishedForPublish(db, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ids[1], rows[0].ID)
	assert.Equal(t, 1, rows[0].AttemptCount)
	require.NotNil(t, rows[0].LastError)
	assert.Equal(t, "unavailable", *rows[0].LastError)

	deleted, err := repo.DeletePublishedBefore(context.Background(), nil, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestDLQRepositoryTruncatesMessage(t *testing.T) {
	db := setupOutboxTestDB(t)
	dlq := NewDLQRepository(db)
	eventID := uuid.New()
	long := make([]byte, maxErrorLen+50)
	for i := range long {
		long[i] = 'x'
	}
	msg := string(long)

	require.NoError(t, dlq.InsertTx(db, models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventPriceAdjusted,
		AggregateType: enums.AggregateBuyBoxStatus,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   enums.OutboxDLQReasonNonRetryable,
		ErrorMessage:  &msg,
		FailedAt:      time.Now().UTC(),
	}))

	found, err := dlq.FindByEventID(context.Background(), eventID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.NotNil(t, found.ErrorMessage)
	assert.Len(t, *found.ErrorMessage, maxErrorLen)

	missing, err := dlq.FindByEventID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDecodeEnvelope(t *testing.T) {
	org := uuid.New()
	raw := []byte(`{"version":1,"eventId":"e1","occurredAt":"2026-03-01T10:00:00Z","actor":{"organizationId":"` + org.String() + `"},"data":{"productId":"sku-1"}}`)

	envelope, err := DecodeEnvelope(raw)
	require.NoError(t, err)
	assert.Equal(t, "e1", envelope.EventID)
	assert.Equal(t, org, envelope.OrganizationID())
	assert.True(t, envelope.HasData())

	_, err = DecodeEnvelope([]byte("{"))
	require.Error(t, err)
}

func TestEnvelopeHasData(t *testing.T) {
	for _, data := range []string{"", "null", "  null  "} {
		envelope := PayloadEnvelope{Data: json.RawMessage(data)}
		assert.False(t, envelope.HasData(), "data %q", data)
	}
	assert.Equal(t, uuid.Nil, PayloadEnvelope{}.OrganizationID())
}

func TestDLQRepositoryCountByReason(t *testing.T) {
	db := setupOutboxTestDB(t)
	dlq := NewDLQRepository(db)
	reasons := []enums.OutboxDLQErrorReason{
		enums.OutboxDLQReasonMaxAttempts,
		enums.OutboxDLQReasonMaxAttempts,
		enums.OutboxDLQReasonUnroutable,
	}
	for _, reason := range reasons {
		require.NoError(t, dlq.InsertTx(db, models.OutboxDLQ{
			EventID:       uuid.New(),
			EventType:     enums.EventPriceAdjusted,
			AggregateType: enums.AggregateBuyBoxStatus,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			ErrorReason:   reason,
			FailedAt:      time.Now().UTC(),
		}))
	}
	require.Error(t, dlq.InsertTx(db, models.OutboxDLQ{EventID: uuid.New(), ErrorReason: "gave_up"}))

	counts, err := dlq.CountByReason(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[enums.OutboxDLQReasonMaxAttempts])
	assert.Equal(t, int64(1), counts[enums.OutboxDLQReasonUnroutable])
	assert.Zero(t, counts[enums.OutboxDLQReasonNonRetryable])
}

func TestTruncateTextKeepsRunesWhole(t *testing.T) {
	msg := strings.Repeat("a", maxErrorLen-1) + "é"
	got := truncateText(msg)
	assert.Len(t, got, maxErrorLen-1)
	assert.True(t, utf8.ValidString(got))
}
