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

type SettingsService struct {
	executor *Executor[*domain.AccountSettings]
	settings repository.SettingsStore
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewSettingsService(
	executor *Executor[*domain.AccountSettings],
	settings repository.SettingsStore,
	logger *zap.Logger,
) *SettingsService {
	return &SettingsService{
		executor: executor,
		settings: settings,
		logger:   logger,
		tracer:   otel.Tracer("service/settings_service"),
	}
}

func (s *SettingsService) CreateSettings(ctx context.Context, accountID, region string) (*domain.AccountSettings, error) {
	ctx, span := s.tracer.Start(ctx, "SettingsService.CreateSettings")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", accountID),
	)

	settings := domain.NewAccountSettings(accountID, region)

	if err := s.executor.Create(ctx, settings, nil); err != nil {
		return nil, err
	}

	return settings, nil
}

func (s *SettingsService) GetSettings(ctx context.Context, accountID, region string) (*domain.AccountSettings, error) {
	return s.settings.GetByID(ctx, accountID, region)
}

func (s *SettingsService) UpdateTimezone(ctx context.Context, accountID, region, newTimezone string) (*domain.AccountSettings, error) {
	return s.executor.Execute(ctx, accountID, region, func(st *domain.AccountSettings) ([]domain.Event, error) {
		return st.UpdateTimezone(region, newTimezone)
	})
}

func (s *SettingsService) UpdatePreferences(
	ctx context.Context,
	accountID, region string,
	privacy *domain.PrivacySettings,
	notifications *domain.NotificationSettings,
	appearance *domain.AppearanceSettings,
) (*domain.AccountSettings, error) {
	return s.executor.Execute(ctx, accountID, region, func(st *domain.AccountSettings) ([]domain.Event, error) {
		return st.UpdatePreferences(region, privacy, notifications, appearance)
	})
}

func (s *SettingsService) AddPushToken(ctx context.Context, accountID, region, token string) (*domain.AccountSettings, error) {
	if token == "" {
		return nil, domain.NewValidationError("token", "must not be empty")
	}

	return s.executor.Execute(ctx, accountID, region, func(st *domain.AccountSettings) ([]domain.Event, error) {
		return st.AddPushToken(region, token)
	})
}

func (s *SettingsService) RemovePushToken(ctx context.Context, accountID, region, token string) (*domain.AccountSettings, error) {
	return s.executor.Execute(ctx, accountID, region, func(st *domain.AccountSettings) ([]domain.Event, error) {
		return st.RemovePushToken(region, token)
	})
}
