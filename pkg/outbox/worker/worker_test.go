package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arnaudmaillet/core-platform-sub000/pkg/outbox/domain"
)

type fakeTx struct {
	pgx.Tx
	committed bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if t.committed {
		return pgx.ErrTxClosed
	}
	return nil
}

type fakeDB struct {
	tx *fakeTx
}

func (db *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	db.tx = &fakeTx{}
	return db.tx, nil
}

type fakeOutboxRepo struct {
	pending   []*domain.OutboxEvent
	published []uuid.UUID
	failed    map[uuid.UUID]string
}

func newFakeOutboxRepo(events ...*domain.OutboxEvent) *fakeOutboxRepo {
	return &fakeOutboxRepo{
		pending: events,
		failed:  map[uuid.UUID]string{},
	}
}

func (r *fakeOutboxRepo) SaveOutboxEvents(ctx context.Context, tx pgx.Tx, events []*domain.OutboxEvent) error {
	r.pending = append(r.pending, events...)
	return nil
}

func (r *fakeOutboxRepo) GetUnpublishedEvents(ctx context.Context, tx pgx.Tx, batchSize int) ([]*domain.OutboxEvent, error) {
	if len(r.pending) > batchSize {
		return r.pending[:batchSize], nil
	}
	return r.pending, nil
}

func (r *fakeOutboxRepo) MarkEventPublished(ctx context.Context, tx pgx.Tx, event *domain.OutboxEvent) error {
	r.published = append(r.published, event.EventID)
	return nil
}

func (r *fakeOutboxRepo) MarkEventFailed(ctx context.Context, tx pgx.Tx, event *domain.OutboxEvent, errMsg string) error {
	r.failed[event.EventID] = errMsg
	return nil
}

type producedMessage struct {
	topic   string
	key     string
	payload map[string]any
}

type fakeProducer struct {
	messages []producedMessage
	failKeys map[string]error
}

func (p *fakeProducer) ProduceMessage(ctx context.Context, topic, key string, message interface{}) error {
	if err := p.failKeys[key]; err != nil {
		return err
	}
	p.messages = append(p.messages, producedMessage{
		topic:   topic,
		key:     key,
		payload: message.(map[string]any),
	})
	return nil
}

func outboxEvent(aggregateID, eventType string, payload string) *domain.OutboxEvent {
	return &domain.OutboxEvent{
		EventID:       uuid.New(),
		Region:        "eu",
		AggregateType: "Profile",
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       json.RawMessage(payload),
		CreatedAt:     time.Now().UTC(),
		Topic:         "identity.events",
	}
}

func newTestProcessor(db TxBeginner, repo OutboxRepository, producer KafkaProducer) *OutboxProcessor {
	return NewOutboxProcessor(db, repo, producer, zap.NewNop(), 50, time.Second)
}

func TestProcessBatchPublishesAndEnrichesEnvelope(t *testing.T) {
	event := outboxEvent("acc-1", "HandleChanged", `{"old_handle":"a","new_handle":"b"}`)
	repo := newFakeOutboxRepo(event)
	producer := &fakeProducer{}
	db := &fakeDB{}

	err := newTestProcessor(db, repo, producer).processBatch(context.Background())
	require.NoError(t, err)

	require.Len(t, producer.messages, 1)
	msg := producer.messages[0]
	assert.Equal(t, "identity.events", msg.topic)
	assert.Equal(t, "acc-1", msg.key, "messages are keyed by aggregate for partition ordering")

	assert.Equal(t, event.EventID.String(), msg.payload["event_id"])
	assert.Equal(t, "HandleChanged", msg.payload["event_type"])
	assert.Equal(t, "Profile", msg.payload["aggregate_type"])
	assert.Equal(t, "acc-1", msg.payload["aggregate_id"])
	assert.Equal(t, "eu", msg.payload["region_code"])
	assert.Equal(t, "a", msg.payload["old_handle"])

	assert.Equal(t, []uuid.UUID{event.EventID}, repo.published)
	assert.True(t, db.tx.committed)
}

func TestProcessBatchMarksProducerFailuresAndContinues(t *testing.T) {
	broken := outboxEvent("acc-1", "TrustScoreAdjusted", `{"delta":-10}`)
	healthy := outboxEvent("acc-2", "HandleChanged", `{"new_handle":"b"}`)
	repo := newFakeOutboxRepo(broken, healthy)
	producer := &fakeProducer{
		failKeys: map[string]error{"acc-1": errors.New("broker unavailable")},
	}
	db := &fakeDB{}

	err := newTestProcessor(db, repo, producer).processBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "broker unavailable", repo.failed[broken.EventID])
	assert.Equal(t, []uuid.UUID{healthy.EventID}, repo.published)
	require.Len(t, producer.messages, 1)
	assert.Equal(t, "acc-2", producer.messages[0].key)
	assert.True(t, db.tx.committed, "failure marks still commit so attempts persist")
}

func TestProcessBatchMarksCorruptPayloads(t *testing.T) {
	corrupt := outboxEvent("acc-1", "HandleChanged", `not json`)
	repo := newFakeOutboxRepo(corrupt)
	producer := &fakeProducer{}
	db := &fakeDB{}

	err := newTestProcessor(db, repo, producer).processBatch(context.Background())
	require.NoError(t, err)

	assert.Empty(t, producer.messages)
	assert.Empty(t, repo.published)
	assert.Contains(t, repo.failed[corrupt.EventID], "invalid character")
}

func TestProcessBatchEmptyIsQuiet(t *testing.T) {
	repo := newFakeOutboxRepo()
	producer := &fakeProducer{}
	db := &fakeDB{}

	err := newTestProcessor(db, repo, producer).processBatch(context.Background())
	require.NoError(t, err)

	assert.Empty(t, producer.messages)
	assert.False(t, db.tx.committed, "nothing to publish, nothing to commit")
}
