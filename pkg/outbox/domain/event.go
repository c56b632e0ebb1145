package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OutboxEvent is one row of the transactional outbox. The primary key is
// (event_id, region): replaying the same event into the same regional shard
// violates the key and is rejected instead of silently duplicated.
type OutboxEvent struct {
	EventID       uuid.UUID       `db:"event_id"`
	Region        string          `db:"region_code"`
	AggregateType string          `db:"aggregate_type"`
	AggregateID   string          `db:"aggregate_id"`
	EventType     string          `db:"event_type"`
	Payload       json.RawMessage `db:"payload"`
	CreatedAt     time.Time       `db:"created_at"`
	PublishedAt   *time.Time      `db:"published_at"`
	Attempts      int64           `db:"attempts"`
	LastError     *string         `db:"last_error"`
	Topic         string          `db:"topic"`
}
