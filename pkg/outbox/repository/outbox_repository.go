package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arnaudmaillet/core-platform-sub000/pkg/outbox/domain"
	"github.com/arnaudmaillet/core-platform-sub000/pkg/outbox/worker"
)

// ErrDuplicateEvent means an event with the same (event_id, region) key is
// already enqueued.
var ErrDuplicateEvent = errors.New("outbox event already exists")

type outboxRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewOutboxRepository(pool *pgxpool.Pool, logger *zap.Logger) worker.OutboxRepository {
	return &outboxRepo{
		pool:   pool,
		tracer: otel.Tracer("outbox/repository"),
		logger: logger,
	}
}

// SaveOutboxEvents appends events inside the caller's transaction so they
// commit or roll back together with the aggregate row they describe.
func (r *outboxRepo) SaveOutboxEvents(ctx context.Context, tx pgx.Tx, events []*domain.OutboxEvent) error {
	ctx, span := r.tracer.Start(ctx, "OutboxRepository.SaveOutboxEvents")
	defer span.End()

	span.SetAttributes(
		attribute.Int("event_count", len(events)),
	)

	query := `
		INSERT INTO outbox (event_id, region_code, aggregate_type, aggregate_id, event_type, payload, topic)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for _, event := range events {
		_, err := tx.Exec(
			ctx,
			query,
			event.EventID,
			event.Region,
			event.AggregateType,
			event.AggregateID,
			event.EventType,
			event.Payload,
			event.Topic,
		)
		if err != nil {
			span.RecordError(err)

			var pgError *pgconn.PgError
			if errors.As(err, &pgError) && pgError.Code == "23505" {
				return fmt.Errorf("%w: %s", ErrDuplicateEvent, event.EventID)
			}

			return fmt.Errorf("failed to save outbox event: %w", err)
		}
	}

	return nil
}

func (r *outboxRepo) GetUnpublishedEvents(ctx context.Context, tx pgx.Tx, batchSize int) ([]*domain.OutboxEvent, error) {
	ctx, span := r.tracer.Start(ctx, "OutboxRepository.GetUnpublishedEvents")
	defer span.End()

	span.SetAttributes(
		attribute.Int("batch_size", batchSize),
	)

	query := `
		SELECT event_id, region_code, aggregate_type, aggregate_id, event_type, payload, created_at, topic
		FROM outbox
		WHERE published_at IS NULL AND attempts < 10
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`

	rows, err := tx.Query(ctx, query, batchSize)
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("failed to query unpublished events: %w", err)
	}
	defer rows.Close()

	var events []*domain.OutboxEvent
	for rows.Next() {
		var e domain.OutboxEvent
		if err := rows.Scan(
			&e.EventID,
			&e.Region,
			&e.AggregateType,
			&e.AggregateID,
			&e.EventType,
			&e.Payload,
			&e.CreatedAt,
			&e.Topic,
		); err != nil {
			span.RecordError(err)

			return nil, fmt.Errorf("error scanning event: %w", err)
		}

		events = append(events, &e)
	}

	span.SetAttributes(
		attribute.Int("result_count", len(events)),
	)

	return events, nil
}

func (r *outboxRepo) MarkEventPublished(ctx context.Context, tx pgx.Tx, event *domain.OutboxEvent) error {
	ctx, span := r.tracer.Start(ctx, "OutboxRepository.MarkEventPublished")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", event.EventID.String()),
	)

	query := `
		UPDATE outbox
		SET published_at = NOW(), last_error = NULL
		WHERE event_id = $1 AND region_code = $2;
	`

	_, err := tx.Exec(ctx, query, event.EventID, event.Region)
	if err != nil {
		span.RecordError(err)
	}

	return err
}

func (r *outboxRepo) MarkEventFailed(ctx context.Context, tx pgx.Tx, event *domain.OutboxEvent, errMsg string) error {
	ctx, span := r.tracer.Start(ctx, "OutboxRepository.MarkEventFailed")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", event.EventID.String()),
		attribute.String("outbox.error_message", errMsg),
	)

	query := `
		UPDATE outbox
		SET published_at = NULL,
			last_error = $1,
			attempts = attempts + 1
		WHERE event_id = $2 AND region_code = $3;
	`

	_, err := tx.Exec(ctx, query, errMsg, event.EventID, event.Region)
	if err != nil {
		span.RecordError(err)
	}

	return err
}
