package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arnaudmaillet/core-platform-sub000/internal/domain"
)

// uniqueConstraintFields maps unique constraint names to the account field a
// caller can act on.
var uniqueConstraintFields = map[string]string{
	"accounts_username_key":    "username",
	"accounts_email_key":       "email",
	"accounts_external_id_key": "external_id",
	"user_profiles_handle_key": "handle",
}

// mapPgError translates driver errors into the domain taxonomy. A unique
// violation on a primary key means another writer created the row first, so
// it surfaces as a concurrency conflict rather than a field clash.
func mapPgError(err error) error {
	var pgError *pgconn.PgError
	if !errors.As(err, &pgError) || pgError.Code != "23505" {
		return err
	}

	if field, ok := uniqueConstraintFields[pgError.ConstraintName]; ok {
		return domain.NewAlreadyExistsError(field)
	}

	if strings.HasSuffix(pgError.ConstraintName, "_pkey") {
		return fmt.Errorf("%w: row already created by a concurrent writer", domain.ErrConcurrencyConflict)
	}

	return err
}

// staleWriteError resolves a conditional update that matched nothing into
// either a concurrency conflict or a missing row.
func staleWriteError(ctx context.Context, tx pgx.Tx, table, idColumn, id string) error {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1);`, table, idColumn)

	var exists bool
	if err := tx.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return fmt.Errorf("error checking row existence: %w", err)
	}

	if exists {
		return fmt.Errorf("%w: %s %s changed concurrently", domain.ErrConcurrencyConflict, table, id)
	}

	return fmt.Errorf("%w: %s %s", domain.ErrNotFound, table, id)
}
