package service

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arnaudmaillet/core-platform-sub000/internal/domain"
	"github.com/arnaudmaillet/core-platform-sub000/internal/repository"
)

type MetadataService struct {
	executor *Executor[*domain.AccountMetadata]
	metadata repository.MetadataStore
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewMetadataService(
	executor *Executor[*domain.AccountMetadata],
	metadata repository.MetadataStore,
	logger *zap.Logger,
) *MetadataService {
	return &MetadataService{
		executor: executor,
		metadata: metadata,
		logger:   logger,
		tracer:   otel.Tracer("service/metadata_service"),
	}
}

func (s *MetadataService) CreateMetadata(ctx context.Context, accountID, region string, initialScore int64) (*domain.AccountMetadata, error) {
	ctx, span := s.tracer.Start(ctx, "MetadataService.CreateMetadata")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", accountID),
	)

	meta := domain.NewAccountMetadata(accountID, region, initialScore)

	if err := s.executor.Create(ctx, meta, nil); err != nil {
		return nil, err
	}

	return meta, nil
}

func (s *MetadataService) GetMetadata(ctx context.Context, accountID, region string) (*domain.AccountMetadata, error) {
	return s.metadata.GetByID(ctx, accountID, region)
}

func (s *MetadataService) SetBetaStatus(ctx context.Context, accountID, region string, enabled bool, reason string) (*domain.AccountMetadata, error) {
	return s.executor.Execute(ctx, accountID, region, func(m *domain.AccountMetadata) ([]domain.Event, error) {
		return m.SetBetaStatus(region, enabled, reason)
	})
}

func (s *MetadataService) IncreaseTrustScore(ctx context.Context, accountID, region string, amount int64, reason string) (*domain.AccountMetadata, error) {
	return s.executor.Execute(ctx, accountID, region, func(m *domain.AccountMetadata) ([]domain.Event, error) {
		return m.IncreaseTrustScore(region, amount, reason)
	})
}

func (s *MetadataService) DecreaseTrustScore(ctx context.Context, accountID, region string, amount int64, reason string) (*domain.AccountMetadata, error) {
	return s.executor.Execute(ctx, accountID, region, func(m *domain.AccountMetadata) ([]domain.Event, error) {
		return m.DecreaseTrustScore(region, amount, reason)
	})
}

func (s *MetadataService) Shadowban(ctx context.Context, accountID, region, reason string) (*domain.AccountMetadata, error) {
	return s.executor.Execute(ctx, accountID, region, func(m *domain.AccountMetadata) ([]domain.Event, error) {
		return m.Shadowban(region, reason)
	})
}

func (s *MetadataService) LiftShadowban(ctx context.Context, accountID, region, reason string) (*domain.AccountMetadata, error) {
	return s.executor.Execute(ctx, accountID, region, func(m *domain.AccountMetadata) ([]domain.Event, error) {
		return m.LiftShadowban(region, reason)
	})
}

func (s *MetadataService) UpgradeRole(ctx context.Context, accountID, region string, newRole domain.AccountRole, reason string) (*domain.AccountMetadata, error) {
	return s.executor.Execute(ctx, accountID, region, func(m *domain.AccountMetadata) ([]domain.Event, error) {
		return m.UpgradeRole(region, newRole, reason)
	})
}
