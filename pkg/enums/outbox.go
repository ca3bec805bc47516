package enums

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const AggregateBuyBoxStatus OutboxAggregateType = "buybox_status"

var aggregateTypes = values[OutboxAggregateType]{AggregateBuyBoxStatus}

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return aggregateTypes.parse("aggregate type", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventPriceAdjusted      OutboxEventType = "price_adjusted"
	EventBuyBoxStateChanged OutboxEventType = "buybox_state_changed"
)

var eventTypes = values[OutboxEventType]{EventPriceAdjusted, EventBuyBoxStateChanged}

func (e OutboxEventType) IsValid() bool { return eventTypes.has(e) }

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return eventTypes.parse("event type", value)
}

// OutboxDLQErrorReason records why an outbox row was moved to outbox_dlq.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	// OutboxDLQReasonUnroutable marks rows whose event type has no registered topic.
	OutboxDLQReasonUnroutable OutboxDLQErrorReason = "unroutable"
)

var dlqReasons = values[OutboxDLQErrorReason]{
	OutboxDLQReasonMaxAttempts,
	OutboxDLQReasonNonRetryable,
	OutboxDLQReasonUnroutable,
}

// OutboxDLQErrorReasons lists every known reason.
func OutboxDLQErrorReasons() []OutboxDLQErrorReason { return dlqReasons.clone() }

func (r OutboxDLQErrorReason) IsValid() bool { return dlqReasons.has(r) }
