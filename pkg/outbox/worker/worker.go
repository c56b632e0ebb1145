package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arnaudmaillet/core-platform-sub000/pkg/mylogger"
	"github.com/arnaudmaillet/core-platform-sub000/pkg/outbox/domain"
)

type OutboxRepository interface {
	SaveOutboxEvents(ctx context.Context, tx pgx.Tx, events []*domain.OutboxEvent) error
	GetUnpublishedEvents(ctx context.Context, tx pgx.Tx, batchSize int) ([]*domain.OutboxEvent, error)
	MarkEventPublished(ctx context.Context, tx pgx.Tx, event *domain.OutboxEvent) error
	MarkEventFailed(ctx context.Context, tx pgx.Tx, event *domain.OutboxEvent, errMsg string) error
}

type KafkaProducer interface {
	ProduceMessage(ctx context.Context, topic, key string, message interface{}) error
}

type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

var (
	publishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_published_total",
		Help: "Outbox events successfully relayed to the broker.",
	})
	failedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_failed_total",
		Help: "Outbox relay attempts that ended in an error.",
	})
)

// OutboxProcessor drains unpublished outbox rows into Kafka. Rows are locked
// with SKIP LOCKED so several replicas can relay concurrently.
type OutboxProcessor struct {
	db            TxBeginner
	repo          OutboxRepository
	kafkaProducer KafkaProducer
	logger        *zap.Logger
	batchSize     int
	interval      time.Duration
	tracer        trace.Tracer
}

func NewOutboxProcessor(
	db TxBeginner,
	repo OutboxRepository,
	producer KafkaProducer,
	logger *zap.Logger,
	batchSize int,
	interval time.Duration,
) *OutboxProcessor {
	return &OutboxProcessor{
		db:            db,
		repo:          repo,
		kafkaProducer: producer,
		logger:        logger,
		batchSize:     batchSize,
		interval:      interval,
		tracer:        otel.Tracer("outbox/worker"),
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	mylogger.Info(ctx, p.logger, "Starting outbox processor")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mylogger.Info(ctx, p.logger, "Outbox processor stopping")

			return
		case <-ticker.C:
			if err := p.processBatch(ctx); err != nil {
				mylogger.Error(
					ctx,
					p.logger,
					"Error processing outbox batch",
					zap.Error(err),
				)
			}
		}
	}
}

func (p *OutboxProcessor) processBatch(ctx context.Context) error {
	ctx, span := p.tracer.Start(ctx, "OutboxProcessor.processBatch")
	defer span.End()

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		err := tx.Rollback(cleanupCtx)
		if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Error(
				cleanupCtx,
				p.logger,
				"Outbox worker failed to rollback transaction",
				zap.Error(err),
			)
		}
	}()

	events, err := p.repo.GetUnpublishedEvents(ctx, tx, p.batchSize)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		return nil
	}

	mylogger.Debug(
		ctx,
		p.logger,
		"Processing outbox events",
		zap.Int("count", len(events)),
	)

	for _, event := range events {
		var payloadMap map[string]any
		if err := json.Unmarshal(event.Payload, &payloadMap); err != nil {
			mylogger.Error(
				ctx,
				p.logger,
				"outbox worker unmarshal event payload failed",
				zap.String("event_id", event.EventID.String()),
				zap.Error(err),
			)

			failedTotal.Inc()
			_ = p.repo.MarkEventFailed(ctx, tx, event, err.Error())
			continue
		}

		payloadMap["event_id"] = event.EventID.String()
		payloadMap["event_type"] = event.EventType
		payloadMap["aggregate_type"] = event.AggregateType
		payloadMap["aggregate_id"] = event.AggregateID
		payloadMap["region_code"] = event.Region

		err = p.kafkaProducer.ProduceMessage(ctx, event.Topic, event.AggregateID, payloadMap)
		if err != nil {
			mylogger.Error(
				ctx,
				p.logger,
				"outbox worker produce message failed",
				zap.String("event_id", event.EventID.String()),
				zap.Error(err),
			)

			failedTotal.Inc()
			if dbErr := p.repo.MarkEventFailed(ctx, tx, event, err.Error()); dbErr != nil {
				mylogger.Error(
					ctx,
					p.logger,
					"outbox worker mark event failed failed",
					zap.String("event_id", event.EventID.String()),
					zap.Error(dbErr),
				)
			}

			continue
		}

		if dbErr := p.repo.MarkEventPublished(ctx, tx, event); dbErr != nil {
			mylogger.Error(
				ctx,
				p.logger,
				"outbox worker mark event published failed",
				zap.String("event_id", event.EventID.String()),
				zap.Error(dbErr),
			)

			return dbErr
		}

		publishedTotal.Inc()
	}

	return tx.Commit(ctx)
}
