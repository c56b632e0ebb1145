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

// ProfileIdentityStore is the durable side of the profile: the Postgres row
// that owns existence, identity fields and the version. Counters live in the
// counter store and are merged in by the composite repository.
type ProfileIdentityStore interface {
	GetByID(ctx context.Context, accountID, region string) (*domain.Profile, error)
	GetIDByHandle(ctx context.Context, handle string) (string, string, error)
	Insert(ctx context.Context, tx pgx.Tx, profile *domain.Profile) error
	Update(ctx context.Context, tx pgx.Tx, profile *domain.Profile, expectedVersion int64) error
	Delete(ctx context.Context, tx pgx.Tx, accountID string) error
}

type profileIdentityRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewProfileIdentityRepository(pool *pgxpool.Pool, logger *zap.Logger) ProfileIdentityStore {
	return &profileIdentityRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("repository/profile_identity_repo"),
	}
}

func (r *profileIdentityRepo) GetByID(ctx context.Context, accountID, region string) (*domain.Profile, error) {
	ctx, span := r.tracer.Start(ctx, "ProfileIdentityRepository.GetByID")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", accountID),
		attribute.String("region_code", region),
	)

	query := `
		SELECT account_id, region_code, display_name, handle, bio, avatar_url,
			banner_url, location_label, social_links, post_count, is_private,
			created_at, updated_at, version
		FROM user_profiles
		WHERE account_id = $1;
	`

	var p domain.Profile
	err := r.pool.QueryRow(ctx, query, accountID).Scan(
		&p.AccountID,
		&p.Region,
		&p.DisplayName,
		&p.Handle,
		&p.Bio,
		&p.AvatarURL,
		&p.BannerURL,
		&p.LocationLabel,
		&p.SocialLinks,
		&p.PostCount,
		&p.IsPrivate,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: profile %s", domain.ErrNotFound, accountID)
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to find profile by id",
			zap.String("account_id", accountID),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error finding profile: %w", err)
	}

	if p.Region != region {
		return nil, domain.NewForbiddenError("profile belongs to another region")
	}

	return &p, nil
}

// GetIDByHandle returns the account id and region a handle points at.
func (r *profileIdentityRepo) GetIDByHandle(ctx context.Context, handle string) (string, string, error) {
	ctx, span := r.tracer.Start(ctx, "ProfileIdentityRepository.GetIDByHandle")
	defer span.End()

	span.SetAttributes(
		attribute.String("handle", handle),
	)

	query := `SELECT account_id, region_code FROM user_profiles WHERE handle = $1;`

	var accountID, region string
	if err := r.pool.QueryRow(ctx, query, handle).Scan(&accountID, &region); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", fmt.Errorf("%w: handle %s", domain.ErrNotFound, handle)
		}

		span.RecordError(err)

		return "", "", fmt.Errorf("error resolving handle: %w", err)
	}

	return accountID, region, nil
}

func (r *profileIdentityRepo) Insert(ctx context.Context, tx pgx.Tx, profile *domain.Profile) error {
	ctx, span := r.tracer.Start(ctx, "ProfileIdentityRepository.Insert")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", profile.AccountID),
	)

	query := `
		INSERT INTO user_profiles (account_id, region_code, display_name, handle,
			bio, avatar_url, banner_url, location_label, social_links, post_count,
			is_private, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := tx.Exec(
		ctx,
		query,
		profile.AccountID,
		profile.Region,
		profile.DisplayName,
		profile.Handle,
		profile.Bio,
		profile.AvatarURL,
		profile.BannerURL,
		profile.LocationLabel,
		profile.SocialLinks,
		profile.PostCount,
		profile.IsPrivate,
		profile.CreatedAt,
		profile.UpdatedAt,
		profile.Version,
	)
	if err != nil {
		span.RecordError(err)

		return mapPgError(err)
	}

	return nil
}

func (r *profileIdentityRepo) Update(ctx context.Context, tx pgx.Tx, profile *domain.Profile, expectedVersion int64) error {
	ctx, span := r.tracer.Start(ctx, "ProfileIdentityRepository.Update")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", profile.AccountID),
		attribute.Int64("expected_version", expectedVersion),
	)

	query := `
		UPDATE user_profiles
		SET region_code = $1,
			display_name = $2,
			handle = $3,
			bio = $4,
			avatar_url = $5,
			banner_url = $6,
			location_label = $7,
			social_links = $8,
			post_count = $9,
			is_private = $10,
			updated_at = $11,
			version = $12
		WHERE account_id = $13 AND version = $14;
	`

	tag, err := tx.Exec(
		ctx,
		query,
		profile.Region,
		profile.DisplayName,
		profile.Handle,
		profile.Bio,
		profile.AvatarURL,
		profile.BannerURL,
		profile.LocationLabel,
		profile.SocialLinks,
		profile.PostCount,
		profile.IsPrivate,
		profile.UpdatedAt,
		profile.Version,
		profile.AccountID,
		expectedVersion,
	)
	if err != nil {
		span.RecordError(err)

		return mapPgError(err)
	}

	if tag.RowsAffected() == 0 {
		return staleWriteError(ctx, tx, "user_profiles", "account_id", profile.AccountID)
	}

	return nil
}

func (r *profileIdentityRepo) Delete(ctx context.Context, tx pgx.Tx, accountID string) error {
	ctx, span := r.tracer.Start(ctx, "ProfileIdentityRepository.Delete")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", accountID),
	)

	_, err := tx.Exec(ctx, `DELETE FROM user_profiles WHERE account_id = $1;`, accountID)
	if err != nil {
		span.RecordError(err)
	}

	return err
}
