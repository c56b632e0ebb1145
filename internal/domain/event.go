package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event is an immutable record of one state transition on an aggregate.
// Mutating methods return the events they produced; the command executor
// drains them into the outbox within the same transaction as the aggregate
// row, so an empty slice means the call was a semantic no-op.
type Event struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	Region        string
	Type          string
	OccurredAt    time.Time
	Payload       map[string]any
}

func newEvent(aggregateType, aggregateID, region, eventType string, occurredAt time.Time, payload map[string]any) Event {
	return Event{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Region:        region,
		Type:          eventType,
		OccurredAt:    occurredAt,
		Payload:       payload,
	}
}
