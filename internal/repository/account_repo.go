package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arnaudmaillet/core-platform-sub000/internal/domain"
	"github.com/arnaudmaillet/core-platform-sub000/pkg/mylogger"
)

type AccountStore interface {
	GetByID(ctx context.Context, accountID, region string) (*domain.Account, error)
	GetByUsername(ctx context.Context, username string) (*domain.Account, error)
	Insert(ctx context.Context, tx pgx.Tx, account *domain.Account) error
	Update(ctx context.Context, tx pgx.Tx, account *domain.Account, expectedVersion int64) error
	Delete(ctx context.Context, tx pgx.Tx, accountID string) error
	TouchActivity(ctx context.Context, accountID string, lastActiveAt time.Time) error
}

type accountRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewAccountRepository(pool *pgxpool.Pool, logger *zap.Logger) AccountStore {
	return &accountRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("repository/account_repo"),
	}
}

const accountColumns = `
	id, region_code, external_id, username, email, email_verified,
	phone_number, phone_verified, state, birth_date, locale,
	created_at, updated_at, last_active_at, version
`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(
		&a.ID,
		&a.Region,
		&a.ExternalID,
		&a.Username,
		&a.Email,
		&a.EmailVerified,
		&a.PhoneNumber,
		&a.PhoneVerified,
		&a.State,
		&a.BirthDate,
		&a.Locale,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.LastActiveAt,
		&a.Version,
	)
	if err != nil {
		return nil, err
	}

	return &a, nil
}

func (r *accountRepo) GetByID(ctx context.Context, accountID, region string) (*domain.Account, error) {
	ctx, span := r.tracer.Start(ctx, "AccountRepository.GetByID")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", accountID),
		attribute.String("region_code", region),
	)

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1;`

	account, err := scanAccount(r.pool.QueryRow(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: account %s", domain.ErrNotFound, accountID)
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to find account by id",
			zap.String("account_id", accountID),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error finding account: %w", err)
	}

	if account.Region != region {
		return nil, domain.NewForbiddenError("account belongs to another region")
	}

	return account, nil
}

func (r *accountRepo) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	ctx, span := r.tracer.Start(ctx, "AccountRepository.GetByUsername")
	defer span.End()

	span.SetAttributes(
		attribute.String("username", username),
	)

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1;`

	account, err := scanAccount(r.pool.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: username %s", domain.ErrNotFound, username)
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to find account by username",
			zap.String("username", username),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error finding account: %w", err)
	}

	return account, nil
}

func (r *accountRepo) Insert(ctx context.Context, tx pgx.Tx, account *domain.Account) error {
	ctx, span := r.tracer.Start(ctx, "AccountRepository.Insert")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", account.ID),
	)

	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := tx.Exec(
		ctx,
		query,
		account.ID,
		account.Region,
		account.ExternalID,
		account.Username,
		account.Email,
		account.EmailVerified,
		account.PhoneNumber,
		account.PhoneVerified,
		account.State,
		account.BirthDate,
		account.Locale,
		account.CreatedAt,
		account.UpdatedAt,
		account.LastActiveAt,
		account.Version,
	)
	if err != nil {
		span.RecordError(err)

		return mapPgError(err)
	}

	return nil
}

// Update writes the whole row behind a version predicate. Zero affected rows
// means either the row moved on under us or it is gone; the follow-up
// existence probe tells the two apart.
func (r *accountRepo) Update(ctx context.Context, tx pgx.Tx, account *domain.Account, expectedVersion int64) error {
	ctx, span := r.tracer.Start(ctx, "AccountRepository.Update")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", account.ID),
		attribute.Int64("expected_version", expectedVersion),
	)

	query := `
		UPDATE accounts
		SET region_code = $1,
			external_id = $2,
			username = $3,
			email = $4,
			email_verified = $5,
			phone_number = $6,
			phone_verified = $7,
			state = $8,
			birth_date = $9,
			locale = $10,
			updated_at = $11,
			last_active_at = $12,
			version = $13
		WHERE id = $14 AND version = $15;
	`

	tag, err := tx.Exec(
		ctx,
		query,
		account.Region,
		account.ExternalID,
		account.Username,
		account.Email,
		account.EmailVerified,
		account.PhoneNumber,
		account.PhoneVerified,
		account.State,
		account.BirthDate,
		account.Locale,
		account.UpdatedAt,
		account.LastActiveAt,
		account.Version,
		account.ID,
		expectedVersion,
	)
	if err != nil {
		span.RecordError(err)

		return mapPgError(err)
	}

	if tag.RowsAffected() == 0 {
		return staleWriteError(ctx, tx, "accounts", "id", account.ID)
	}

	return nil
}

// TouchActivity writes last_active_at outside the version protocol: it is
// pure bookkeeping and must not conflict with concurrent mutations.
func (r *accountRepo) TouchActivity(ctx context.Context, accountID string, lastActiveAt time.Time) error {
	ctx, span := r.tracer.Start(ctx, "AccountRepository.TouchActivity")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", accountID),
	)

	query := `UPDATE accounts SET last_active_at = $1 WHERE id = $2;`

	_, err := r.pool.Exec(ctx, query, lastActiveAt, accountID)
	if err != nil {
		span.RecordError(err)
	}

	return err
}

func (r *accountRepo) Delete(ctx context.Context, tx pgx.Tx, accountID string) error {
	ctx, span := r.tracer.Start(ctx, "AccountRepository.Delete")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", accountID),
	)

	_, err := tx.Exec(ctx, `DELETE FROM accounts WHERE id = $1;`, accountID)
	if err != nil {
		span.RecordError(err)
	}

	return err
}

