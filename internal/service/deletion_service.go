package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arnaudmaillet/core-platform-sub000/internal/domain"
	"github.com/arnaudmaillet/core-platform-sub000/internal/repository"
	"github.com/arnaudmaillet/core-platform-sub000/pkg/mylogger"
)

// DeletionService removes an account from every layer: the four identity
// rows in one transaction, then counters and cache entries best-effort. A
// failed cache or counter cleanup is logged, not fatal; TTLs bound the
// leftovers.
type DeletionService struct {
	db       TxBeginner
	accounts repository.AccountStore
	metadata repository.MetadataStore
	settings repository.SettingsStore
	profiles repository.ProfileIdentityStore
	reader   repository.ProfileReader
	index    repository.UsernameIndex
	outbox   OutboxAppender
	topic    string
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewDeletionService(
	db TxBeginner,
	accounts repository.AccountStore,
	metadata repository.MetadataStore,
	settings repository.SettingsStore,
	profiles repository.ProfileIdentityStore,
	reader repository.ProfileReader,
	index repository.UsernameIndex,
	outbox OutboxAppender,
	topic string,
	logger *zap.Logger,
) *DeletionService {
	return &DeletionService{
		db:       db,
		accounts: accounts,
		metadata: metadata,
		settings: settings,
		profiles: profiles,
		reader:   reader,
		index:    index,
		outbox:   outbox,
		topic:    topic,
		logger:   logger,
		tracer:   otel.Tracer("service/deletion_service"),
	}
}

func (s *DeletionService) DeleteAccount(ctx context.Context, accountID, region string) error {
	ctx, span := s.tracer.Start(ctx, "DeletionService.DeleteAccount")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", accountID),
		attribute.String("region_code", region),
	)

	account, err := s.accounts.GetByID(ctx, accountID, region)
	if err != nil {
		return err
	}

	// The profile may never have been created; deletion proceeds without it.
	var handle string
	profile, err := s.profiles.GetByID(ctx, accountID, region)
	switch {
	case err == nil:
		handle = profile.Handle
	case !errors.Is(err, domain.ErrNotFound):
		return err
	}

	err = s.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.profiles.Delete(ctx, tx, accountID); err != nil {
			return err
		}
		if err := s.settings.Delete(ctx, tx, accountID); err != nil {
			return err
		}
		if err := s.metadata.Delete(ctx, tx, accountID); err != nil {
			return err
		}
		if err := s.accounts.Delete(ctx, tx, accountID); err != nil {
			return err
		}

		rows, err := outboxRows(account.Deleted(), s.topic)
		if err != nil {
			return err
		}

		return s.outbox.SaveOutboxEvents(ctx, tx, rows)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	s.index.Evict(ctx, account.Username)

	handles := []string{}
	if handle != "" {
		handles = append(handles, handle)
	}
	if err := s.reader.Purge(ctx, accountID, handles...); err != nil {
		mylogger.Warn(
			ctx,
			s.logger,
			"account deleted but fast-store purge incomplete",
			zap.String("account_id", accountID),
			zap.Error(err),
		)
	}

	mylogger.Info(
		ctx,
		s.logger,
		"account deleted",
		zap.String("account_id", accountID),
		zap.String("region_code", region),
	)

	return nil
}

func (s *DeletionService) inTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		err := tx.Rollback(cleanupCtx)
		if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Error(
				cleanupCtx,
				s.logger,
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
