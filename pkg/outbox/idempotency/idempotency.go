package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/repricer-backend/pkg/instance"
	"github.com/angelmondragon/repricer-backend/pkg/redis"
)

const processedScope = "evt:processed:"

var (
	errNoConsumer = errors.New("consumer name is required")
	errNoEventID  = errors.New("event id is required")
)

// Manager records which events a consumer has claimed. A claim is a SETNX marker that lives
// for ttl; its value names the claiming instance and time.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	now   func() time.Time
}

func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}, nil
}

// Claim reports true when this call is the first to see eventID for consumer.
func (m *Manager) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	marker := instance.GetID() + "@" + m.now().UTC().Format(time.RFC3339)
	return m.store.SetNX(ctx, key, marker, m.ttl)
}

// Release drops the claim so a redelivery is handled again.
func (m *Manager) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	switch {
	case consumer == "":
		return "", errNoConsumer
	case eventID == uuid.Nil:
		return "", errNoEventID
	}
	return m.store.IdempotencyKey(processedScope+consumer, eventID.String()), nil
}
