package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arnaudmaillet/core-platform-sub000/internal/domain"
	"github.com/arnaudmaillet/core-platform-sub000/pkg/mylogger"
)

type SettingsStore interface {
	GetByID(ctx context.Context, accountID, region string) (*domain.AccountSettings, error)
	Insert(ctx context.Context, tx pgx.Tx, settings *domain.AccountSettings) error
	Update(ctx context.Context, tx pgx.Tx, settings *domain.AccountSettings, expectedVersion int64) error
	Delete(ctx context.Context, tx pgx.Tx, accountID string) error
}

type settingsRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewSettingsRepository(pool *pgxpool.Pool, logger *zap.Logger) SettingsStore {
	return &settingsRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("repository/settings_repo"),
	}
}

func (r *settingsRepo) GetByID(ctx context.Context, accountID, region string) (*domain.AccountSettings, error) {
	ctx, span := r.tracer.Start(ctx, "SettingsRepository.GetByID")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", accountID),
	)

	query := `
		SELECT account_id, region_code, privacy, notifications, appearance,
			timezone, push_tokens, updated_at, version
		FROM account_settings
		WHERE account_id = $1;
	`

	var s domain.AccountSettings
	err := r.pool.QueryRow(ctx, query, accountID).Scan(
		&s.AccountID,
		&s.Region,
		&s.Privacy,
		&s.Notifications,
		&s.Appearance,
		&s.Timezone,
		&s.PushTokens,
		&s.UpdatedAt,
		&s.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: account settings %s", domain.ErrNotFound, accountID)
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to find account settings",
			zap.String("account_id", accountID),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error finding account settings: %w", err)
	}

	if s.Region != region {
		return nil, domain.NewForbiddenError("account settings belong to another region")
	}

	return &s, nil
}

func (r *settingsRepo) Insert(ctx context.Context, tx pgx.Tx, settings *domain.AccountSettings) error {
	ctx, span := r.tracer.Start(ctx, "SettingsRepository.Insert")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", settings.AccountID),
	)

	query := `
		INSERT INTO account_settings (account_id, region_code, privacy, notifications,
			appearance, timezone, push_tokens, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := tx.Exec(
		ctx,
		query,
		settings.AccountID,
		settings.Region,
		settings.Privacy,
		settings.Notifications,
		settings.Appearance,
		settings.Timezone,
		settings.PushTokens,
		settings.UpdatedAt,
		settings.Version,
	)
	if err != nil {
		span.RecordError(err)

		return mapPgError(err)
	}

	return nil
}

func (r *settingsRepo) Update(ctx context.Context, tx pgx.Tx, settings *domain.AccountSettings, expectedVersion int64) error {
	ctx, span := r.tracer.Start(ctx, "SettingsRepository.Update")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", settings.AccountID),
		attribute.Int64("expected_version", expectedVersion),
	)

	query := `
		UPDATE account_settings
		SET region_code = $1,
			privacy = $2,
			notifications = $3,
			appearance = $4,
			timezone = $5,
			push_tokens = $6,
			updated_at = $7,
			version = $8
		WHERE account_id = $9 AND version = $10;
	`

	tag, err := tx.Exec(
		ctx,
		query,
		settings.Region,
		settings.Privacy,
		settings.Notifications,
		settings.Appearance,
		settings.Timezone,
		settings.PushTokens,
		settings.UpdatedAt,
		settings.Version,
		settings.AccountID,
		expectedVersion,
	)
	if err != nil {
		span.RecordError(err)

		return mapPgError(err)
	}

	if tag.RowsAffected() == 0 {
		return staleWriteError(ctx, tx, "account_settings", "account_id", settings.AccountID)
	}

	return nil
}

func (r *settingsRepo) Delete(ctx context.Context, tx pgx.Tx, accountID string) error {
	ctx, span := r.tracer.Start(ctx, "SettingsRepository.Delete")
	defer span.End()

	_, err := tx.Exec(ctx, `DELETE FROM account_settings WHERE account_id = $1;`, accountID)
	if err != nil {
		span.RecordError(err)
	}

	return err
}
