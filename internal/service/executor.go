package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arnaudmaillet/core-platform-sub000/internal/domain"
	"github.com/arnaudmaillet/core-platform-sub000/pkg/mylogger"
	outboxdomain "github.com/arnaudmaillet/core-platform-sub000/pkg/outbox/domain"
)

var conflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "occ_conflicts_total",
	Help: "Version conflicts hit by the command executor, by aggregate type.",
}, []string{"aggregate_type"})

// TxBeginner is the slice of pgxpool.Pool the executor needs.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is the persistence contract one aggregate type plugs into the
// executor. Update must fail with domain.ErrConcurrencyConflict when the
// stored version no longer matches expectedVersion.
type Store[A domain.Aggregate] interface {
	GetByID(ctx context.Context, accountID, region string) (A, error)
	Insert(ctx context.Context, tx pgx.Tx, aggregate A) error
	Update(ctx context.Context, tx pgx.Tx, aggregate A, expectedVersion int64) error
}

// OutboxAppender enqueues events inside the same transaction as the
// aggregate write.
type OutboxAppender interface {
	SaveOutboxEvents(ctx context.Context, tx pgx.Tx, events []*outboxdomain.OutboxEvent) error
}

// Executor runs one mutation against one aggregate under optimistic
// concurrency: load, mutate in memory, then write row and outbox events in a
// single transaction guarded by the loaded version. A version conflict
// reloads and replays the mutation, up to maxRetries times. No other error
// is retried.
type Executor[A domain.Aggregate] struct {
	db          TxBeginner
	store       Store[A]
	outbox      OutboxAppender
	topic       string
	maxRetries  int
	baseBackoff time.Duration
	logger      *zap.Logger
	tracer      trace.Tracer
}

func NewExecutor[A domain.Aggregate](
	db TxBeginner,
	store Store[A],
	outbox OutboxAppender,
	topic string,
	maxRetries int,
	baseBackoff time.Duration,
	logger *zap.Logger,
) *Executor[A] {
	return &Executor[A]{
		db:          db,
		store:       store,
		outbox:      outbox,
		topic:       topic,
		maxRetries:  maxRetries,
		baseBackoff: baseBackoff,
		logger:      logger,
		tracer:      otel.Tracer("service/executor"),
	}
}

func (e *Executor[A]) Execute(ctx context.Context, accountID, region string, mutate func(A) ([]domain.Event, error)) (A, error) {
	ctx, span := e.tracer.Start(ctx, "Executor.Execute")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", accountID),
		attribute.String("region_code", region),
	)

	var zero A
	for attempt := 0; ; attempt++ {
		aggregate, err := e.store.GetByID(ctx, accountID, region)
		if err != nil {
			return zero, err
		}

		expectedVersion := aggregate.AggregateVersion()

		events, err := mutate(aggregate)
		if err != nil {
			return zero, err
		}

		// A mutation that emits nothing changed nothing: skip the write
		// entirely so no-ops never bump versions or enqueue events.
		if len(events) == 0 {
			span.SetAttributes(attribute.Bool("no_op", true))
			return aggregate, nil
		}

		err = e.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
			if err := e.store.Update(ctx, tx, aggregate, expectedVersion); err != nil {
				return err
			}

			rows, err := outboxRows(events, e.topic)
			if err != nil {
				return err
			}

			return e.outbox.SaveOutboxEvents(ctx, tx, rows)
		})
		if err == nil {
			span.SetAttributes(attribute.Int("attempts", attempt+1))
			return aggregate, nil
		}

		if errors.Is(err, domain.ErrConcurrencyConflict) {
			conflictsTotal.WithLabelValues(aggregate.AggregateType()).Inc()
		}

		if !errors.Is(err, domain.ErrConcurrencyConflict) || attempt >= e.maxRetries {
			span.RecordError(err)
			return zero, err
		}

		mylogger.Warn(
			ctx,
			e.logger,
			"version conflict, retrying mutation",
			zap.String("account_id", accountID),
			zap.Int("attempt", attempt+1),
		)

		if err := e.sleep(ctx, attempt); err != nil {
			return zero, err
		}
	}
}

// Create persists a freshly constructed aggregate and its creation events in
// one transaction. There is no retry: a key collision here means the caller
// lost a creation race and should surface it as-is.
func (e *Executor[A]) Create(ctx context.Context, aggregate A, events []domain.Event) error {
	ctx, span := e.tracer.Start(ctx, "Executor.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", aggregate.AggregateID()),
	)

	err := e.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := e.store.Insert(ctx, tx, aggregate); err != nil {
			return err
		}

		rows, err := outboxRows(events, e.topic)
		if err != nil {
			return err
		}

		return e.outbox.SaveOutboxEvents(ctx, tx, rows)
	})
	if err != nil {
		span.RecordError(err)
	}

	return err
}

func (e *Executor[A]) inTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := e.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}

	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		err := tx.Rollback(cleanupCtx)
		if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Error(
				cleanupCtx,
				e.logger,
				"Error rolling back transaction",
				zap.Error(err),
			)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// sleep backs off exponentially with jitter so colliding writers spread out.
// The base is floored at one millisecond: rand.N panics on a non-positive
// argument and a zero base would retry in a hot loop anyway.
func (e *Executor[A]) sleep(ctx context.Context, attempt int) error {
	base := e.baseBackoff
	if base <= 0 {
		base = time.Millisecond
	}

	backoff := base << attempt
	backoff += rand.N(base)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoff):
		return nil
	}
}

// outboxRows converts domain events to outbox rows bound for one topic.
func outboxRows(events []domain.Event, topic string) ([]*outboxdomain.OutboxEvent, error) {
	rows := make([]*outboxdomain.OutboxEvent, 0, len(events))
	for _, event := range events {
		payload := make(map[string]any, len(event.Payload)+1)
		for k, v := range event.Payload {
			payload[k] = v
		}
		payload["occurred_at"] = event.OccurredAt

		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("error marshaling event payload: %w", err)
		}

		rows = append(rows, &outboxdomain.OutboxEvent{
			EventID:       event.ID,
			Region:        event.Region,
			AggregateType: event.AggregateType,
			AggregateID:   event.AggregateID,
			EventType:     event.Type,
			Payload:       data,
			Topic:         topic,
		})
	}

	return rows, nil
}
