package outbox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActorRef names the organization and subsystem an event originated from.
type ActorRef struct {
	OrganizationID uuid.UUID `json:"organizationId"`
	Source         string    `json:"source,omitempty"`
}

// PayloadEnvelope is what outbox_events.payload holds and what gets published verbatim.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a stored or published envelope.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return envelope, nil
}

// HasData reports whether the envelope carries a non-null data object.
func (e PayloadEnvelope) HasData() bool {
	trimmed := bytes.TrimSpace(e.Data)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// OrganizationID returns the actor organization, or uuid.Nil when no actor was recorded.
func (e PayloadEnvelope) OrganizationID() uuid.UUID {
	if e.Actor == nil {
		return uuid.Nil
	}
	return e.Actor.OrganizationID
}
