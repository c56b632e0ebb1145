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

type MetadataStore interface {
	GetByID(ctx context.Context, accountID, region string) (*domain.AccountMetadata, error)
	Insert(ctx context.Context, tx pgx.Tx, meta *domain.AccountMetadata) error
	Update(ctx context.Context, tx pgx.Tx, meta *domain.AccountMetadata, expectedVersion int64) error
	Delete(ctx context.Context, tx pgx.Tx, accountID string) error
}

type metadataRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewMetadataRepository(pool *pgxpool.Pool, logger *zap.Logger) MetadataStore {
	return &metadataRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("repository/metadata_repo"),
	}
}

func (r *metadataRepo) GetByID(ctx context.Context, accountID, region string) (*domain.AccountMetadata, error) {
	ctx, span := r.tracer.Start(ctx, "MetadataRepository.GetByID")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", accountID),
	)

	query := `
		SELECT account_id, region_code, role, is_beta_tester, is_shadowbanned,
			trust_score, last_moderation_at, moderation_notes, updated_at, version
		FROM account_metadata
		WHERE account_id = $1;
	`

	var m domain.AccountMetadata
	err := r.pool.QueryRow(ctx, query, accountID).Scan(
		&m.AccountID,
		&m.Region,
		&m.Role,
		&m.IsBetaTester,
		&m.IsShadowbanned,
		&m.TrustScore,
		&m.LastModerationAt,
		&m.ModerationNotes,
		&m.UpdatedAt,
		&m.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: account metadata %s", domain.ErrNotFound, accountID)
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to find account metadata",
			zap.String("account_id", accountID),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error finding account metadata: %w", err)
	}

	if m.Region != region {
		return nil, domain.NewForbiddenError("account metadata belongs to another region")
	}

	return &m, nil
}

func (r *metadataRepo) Insert(ctx context.Context, tx pgx.Tx, meta *domain.AccountMetadata) error {
	ctx, span := r.tracer.Start(ctx, "MetadataRepository.Insert")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", meta.AccountID),
	)

	query := `
		INSERT INTO account_metadata (account_id, region_code, role, is_beta_tester,
			is_shadowbanned, trust_score, last_moderation_at, moderation_notes, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := tx.Exec(
		ctx,
		query,
		meta.AccountID,
		meta.Region,
		meta.Role,
		meta.IsBetaTester,
		meta.IsShadowbanned,
		meta.TrustScore,
		meta.LastModerationAt,
		meta.ModerationNotes,
		meta.UpdatedAt,
		meta.Version,
	)
	if err != nil {
		span.RecordError(err)

		return mapPgError(err)
	}

	return nil
}

func (r *metadataRepo) Update(ctx context.Context, tx pgx.Tx, meta *domain.AccountMetadata, expectedVersion int64) error {
	ctx, span := r.tracer.Start(ctx, "MetadataRepository.Update")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", meta.AccountID),
		attribute.Int64("expected_version", expectedVersion),
	)

	query := `
		UPDATE account_metadata
		SET region_code = $1,
			role = $2,
			is_beta_tester = $3,
			is_shadowbanned = $4,
			trust_score = $5,
			last_moderation_at = $6,
			moderation_notes = $7,
			updated_at = $8,
			version = $9
		WHERE account_id = $10 AND version = $11;
	`

	tag, err := tx.Exec(
		ctx,
		query,
		meta.Region,
		meta.Role,
		meta.IsBetaTester,
		meta.IsShadowbanned,
		meta.TrustScore,
		meta.LastModerationAt,
		meta.ModerationNotes,
		meta.UpdatedAt,
		meta.Version,
		meta.AccountID,
		expectedVersion,
	)
	if err != nil {
		span.RecordError(err)

		return mapPgError(err)
	}

	if tag.RowsAffected() == 0 {
		return staleWriteError(ctx, tx, "account_metadata", "account_id", meta.AccountID)
	}

	return nil
}

func (r *metadataRepo) Delete(ctx context.Context, tx pgx.Tx, accountID string) error {
	ctx, span := r.tracer.Start(ctx, "MetadataRepository.Delete")
	defer span.End()

	_, err := tx.Exec(ctx, `DELETE FROM account_metadata WHERE account_id = $1;`, accountID)
	if err != nil {
		span.RecordError(err)
	}

	return err
}
