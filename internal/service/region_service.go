package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arnaudmaillet/core-platform-sub000/internal/domain"
	"github.com/arnaudmaillet/core-platform-sub000/pkg/mylogger"
)

// RegionMigrationService moves one account's three aggregates to a new
// regional shard. Each aggregate is its own consistency boundary, so this is
// a best-effort compensating sequence: if a step fails, already-migrated
// aggregates are moved back rather than left split across regions.
type RegionMigrationService struct {
	accounts *Executor[*domain.Account]
	metadata *Executor[*domain.AccountMetadata]
	settings *Executor[*domain.AccountSettings]
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewRegionMigrationService(
	accounts *Executor[*domain.Account],
	metadata *Executor[*domain.AccountMetadata],
	settings *Executor[*domain.AccountSettings],
	logger *zap.Logger,
) *RegionMigrationService {
	return &RegionMigrationService{
		accounts: accounts,
		metadata: metadata,
		settings: settings,
		logger:   logger,
		tracer:   otel.Tracer("service/region_service"),
	}
}

func (s *RegionMigrationService) MigrateAccount(ctx context.Context, accountID, fromRegion, toRegion string) error {
	ctx, span := s.tracer.Start(ctx, "RegionMigrationService.MigrateAccount")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", accountID),
		attribute.String("from_region", fromRegion),
		attribute.String("to_region", toRegion),
	)

	if toRegion == "" {
		return domain.NewValidationError("region", "must not be empty")
	}
	if fromRegion == toRegion {
		return nil
	}

	steps := []struct {
		name string
		run  func(from, to string) error
	}{
		{"account", func(from, to string) error {
			_, err := s.accounts.Execute(ctx, accountID, from, func(a *domain.Account) ([]domain.Event, error) {
				return a.ChangeRegion(to)
			})
			return err
		}},
		{"metadata", func(from, to string) error {
			_, err := s.metadata.Execute(ctx, accountID, from, func(m *domain.AccountMetadata) ([]domain.Event, error) {
				return m.ChangeRegion(to)
			})
			return err
		}},
		{"settings", func(from, to string) error {
			_, err := s.settings.Execute(ctx, accountID, from, func(st *domain.AccountSettings) ([]domain.Event, error) {
				return st.ChangeRegion(to)
			})
			return err
		}},
	}

	for i, step := range steps {
		err := step.run(fromRegion, toRegion)
		if err == nil {
			continue
		}

		mylogger.Error(
			ctx,
			s.logger,
			"region migration step failed, compensating",
			zap.String("account_id", accountID),
			zap.String("step", step.name),
			zap.Error(err),
		)

		for j := i - 1; j >= 0; j-- {
			if cErr := steps[j].run(toRegion, fromRegion); cErr != nil {
				mylogger.Error(
					ctx,
					s.logger,
					"region migration compensation failed, aggregates split across regions",
					zap.String("account_id", accountID),
					zap.String("step", steps[j].name),
					zap.Error(cErr),
				)
			}
		}

		return fmt.Errorf("region migration failed at %s: %w", step.name, err)
	}

	mylogger.Info(
		ctx,
		s.logger,
		"account migrated to new region",
		zap.String("account_id", accountID),
		zap.String("to_region", toRegion),
	)

	return nil
}
