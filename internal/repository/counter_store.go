package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arnaudmaillet/core-platform-sub000/internal/domain"
)

const (
	counterKeyPrefix    = "profile_counters:"
	fieldFollowerCount  = "follower_count"
	fieldFollowingCount = "following_count"
)

// CounterStore holds the high-churn social counters in a dedicated Redis
// instance, one hash per account. A missing hash reads as zero counters.
type CounterStore interface {
	GetStats(ctx context.Context, accountID string) (domain.ProfileStats, error)
	AdjustFollowers(ctx context.Context, accountID string, delta int64) (int64, error)
	AdjustFollowing(ctx context.Context, accountID string, delta int64) (int64, error)
	Delete(ctx context.Context, accountID string) error
}

type counterStore struct {
	client *redis.Client
	tracer trace.Tracer
	logger *zap.Logger
}

func NewCounterStore(client *redis.Client, logger *zap.Logger) CounterStore {
	return &counterStore{
		client: client,
		logger: logger,
		tracer: otel.Tracer("repository/counter_store"),
	}
}

func counterKey(accountID string) string {
	return counterKeyPrefix + accountID
}

func (s *counterStore) GetStats(ctx context.Context, accountID string) (domain.ProfileStats, error) {
	ctx, span := s.tracer.Start(ctx, "CounterStore.GetStats")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", accountID),
	)

	fields, err := s.client.HGetAll(ctx, counterKey(accountID)).Result()
	if err != nil {
		span.RecordError(err)

		return domain.ProfileStats{}, fmt.Errorf("error reading counters: %w", err)
	}

	return domain.ProfileStats{
		FollowerCount:  parseCounter(fields[fieldFollowerCount]),
		FollowingCount: parseCounter(fields[fieldFollowingCount]),
	}, nil
}

func (s *counterStore) AdjustFollowers(ctx context.Context, accountID string, delta int64) (int64, error) {
	return s.adjust(ctx, "CounterStore.AdjustFollowers", accountID, fieldFollowerCount, delta)
}

func (s *counterStore) AdjustFollowing(ctx context.Context, accountID string, delta int64) (int64, error) {
	return s.adjust(ctx, "CounterStore.AdjustFollowing", accountID, fieldFollowingCount, delta)
}

func (s *counterStore) adjust(ctx context.Context, spanName, accountID, field string, delta int64) (int64, error) {
	ctx, span := s.tracer.Start(ctx, spanName)
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", accountID),
		attribute.Int64("delta", delta),
	)

	value, err := s.client.HIncrBy(ctx, counterKey(accountID), field, delta).Result()
	if err != nil {
		span.RecordError(err)

		return 0, fmt.Errorf("error adjusting counter %s: %w", field, err)
	}

	// Concurrent unfollows can race below zero; reset so reads stay sane.
	if value < 0 {
		if err := s.client.HSet(ctx, counterKey(accountID), field, 0).Err(); err != nil {
			span.RecordError(err)
		}
		value = 0
	}

	return value, nil
}

func (s *counterStore) Delete(ctx context.Context, accountID string) error {
	ctx, span := s.tracer.Start(ctx, "CounterStore.Delete")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", accountID),
	)

	if err := s.client.Del(ctx, counterKey(accountID)).Err(); err != nil {
		span.RecordError(err)

		return fmt.Errorf("error deleting counters: %w", err)
	}

	return nil
}

// parseCounter treats absent or garbled fields as zero; counters are an
// enrichment, never a reason to fail a profile read.
func parseCounter(raw string) int64 {
	if raw == "" {
		return 0
	}

	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < 0 {
		return 0
	}

	return value
}
