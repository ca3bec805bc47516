package types

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/repricer-backend/pkg/enums"
)

// Envelope is a pricing event as received from the pricing topic.
type Envelope struct {
	EventID        string                    `json:"event_id"`
	EventType      enums.OutboxEventType     `json:"event_type"`
	AggregateType  enums.OutboxAggregateType `json:"aggregate_type"`
	AggregateID    string                    `json:"aggregate_id"`
	OrganizationID string                    `json:"organization_id,omitempty"`
	OccurredAt     time.Time                 `json:"occurred_at"`
	Payload        json.RawMessage           `json:"payload"`
}
