package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arnaudmaillet/core-platform-sub000/internal/domain"
	"github.com/arnaudmaillet/core-platform-sub000/internal/repository"
	"github.com/arnaudmaillet/core-platform-sub000/pkg/mylogger"
)

type AccountService struct {
	executor *Executor[*domain.Account]
	accounts repository.AccountStore
	index    repository.UsernameIndex
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewAccountService(
	executor *Executor[*domain.Account],
	accounts repository.AccountStore,
	index repository.UsernameIndex,
	logger *zap.Logger,
) *AccountService {
	return &AccountService{
		executor: executor,
		accounts: accounts,
		index:    index,
		logger:   logger,
		tracer:   otel.Tracer("service/account_service"),
	}
}

type CreateAccountParams struct {
	AccountID  string
	Region     string
	Username   string
	Email      string
	ExternalID string
}

func (s *AccountService) CreateAccount(ctx context.Context, params CreateAccountParams) (*domain.Account, error) {
	ctx, span := s.tracer.Start(ctx, "AccountService.CreateAccount")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", params.AccountID),
		attribute.String("region_code", params.Region),
	)

	if params.Username == "" {
		return nil, domain.NewValidationError("username", "must not be empty")
	}
	if !strings.Contains(params.Email, "@") {
		return nil, domain.NewValidationError("email", "must be a valid address")
	}
	if params.Region == "" {
		return nil, domain.NewValidationError("region", "must not be empty")
	}

	account := domain.NewAccount(params.AccountID, params.Region, params.Username, params.Email, params.ExternalID)

	if err := s.executor.Create(ctx, account, account.Created()); err != nil {
		return nil, err
	}

	mylogger.Info(
		ctx,
		s.logger,
		"account created",
		zap.String("account_id", account.ID),
		zap.String("region_code", account.Region),
	)

	return account, nil
}

func (s *AccountService) GetAccount(ctx context.Context, accountID, region string) (*domain.Account, error) {
	return s.accounts.GetByID(ctx, accountID, region)
}

// ResolveByUsername looks an account up by its unique username, crossing
// region boundaries; the caller decides what it may do with the result. The
// index is consulted first; a stale entry is evicted and the lookup falls
// through to the store.
func (s *AccountService) ResolveByUsername(ctx context.Context, username string) (*domain.Account, error) {
	ctx, span := s.tracer.Start(ctx, "AccountService.ResolveByUsername")
	defer span.End()

	if accountID, region, ok := s.index.Resolve(ctx, username); ok {
		account, err := s.accounts.GetByID(ctx, accountID, region)
		switch {
		case err == nil && account.Username == username:
			span.SetAttributes(attribute.Bool("index_hit", true))
			return account, nil
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}

		s.index.Evict(ctx, username)
	}

	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	// Index population is best-effort and must not hold up the response.
	go func() {
		s.index.Store(context.WithoutCancel(ctx), account.Username, account.ID, account.Region)
	}()

	return account, nil
}

func (s *AccountService) LinkExternalIdentity(ctx context.Context, accountID, region, externalID string) (*domain.Account, error) {
	return s.executor.Execute(ctx, accountID, region, func(a *domain.Account) ([]domain.Event, error) {
		return a.LinkExternalIdentity(region, externalID)
	})
}

func (s *AccountService) ChangeEmail(ctx context.Context, accountID, region, newEmail string) (*domain.Account, error) {
	if !strings.Contains(newEmail, "@") {
		return nil, domain.NewValidationError("email", "must be a valid address")
	}

	return s.executor.Execute(ctx, accountID, region, func(a *domain.Account) ([]domain.Event, error) {
		return a.ChangeEmail(region, newEmail)
	})
}

func (s *AccountService) VerifyEmail(ctx context.Context, accountID, region string) (*domain.Account, error) {
	return s.executor.Execute(ctx, accountID, region, func(a *domain.Account) ([]domain.Event, error) {
		return a.VerifyEmail(region)
	})
}

func (s *AccountService) ChangePhoneNumber(ctx context.Context, accountID, region, newPhone string) (*domain.Account, error) {
	return s.executor.Execute(ctx, accountID, region, func(a *domain.Account) ([]domain.Event, error) {
		return a.ChangePhoneNumber(region, newPhone)
	})
}

func (s *AccountService) VerifyPhone(ctx context.Context, accountID, region string) (*domain.Account, error) {
	return s.executor.Execute(ctx, accountID, region, func(a *domain.Account) ([]domain.Event, error) {
		return a.VerifyPhone(region)
	})
}

func (s *AccountService) ChangeUsername(ctx context.Context, accountID, region, newUsername string) (*domain.Account, error) {
	if newUsername == "" {
		return nil, domain.NewValidationError("username", "must not be empty")
	}

	var oldUsername string
	account, err := s.executor.Execute(ctx, accountID, region, func(a *domain.Account) ([]domain.Event, error) {
		oldUsername = a.Username
		return a.ChangeUsername(region, newUsername)
	})
	if err != nil {
		return nil, err
	}

	// Both index entries go before the call returns so a reader never
	// resolves the old username to this account again.
	s.index.Evict(ctx, oldUsername)
	s.index.Evict(ctx, newUsername)

	return account, nil
}

func (s *AccountService) ChangeBirthDate(ctx context.Context, accountID, region string, newDate time.Time) (*domain.Account, error) {
	return s.executor.Execute(ctx, accountID, region, func(a *domain.Account) ([]domain.Event, error) {
		return a.ChangeBirthDate(region, newDate)
	})
}

func (s *AccountService) UpdateLocale(ctx context.Context, accountID, region, newLocale string) (*domain.Account, error) {
	return s.executor.Execute(ctx, accountID, region, func(a *domain.Account) ([]domain.Event, error) {
		return a.UpdateLocale(region, newLocale)
	})
}

func (s *AccountService) Deactivate(ctx context.Context, accountID, region string) (*domain.Account, error) {
	return s.executor.Execute(ctx, accountID, region, func(a *domain.Account) ([]domain.Event, error) {
		return a.Deactivate(region)
	})
}

func (s *AccountService) Reactivate(ctx context.Context, accountID, region string) (*domain.Account, error) {
	return s.executor.Execute(ctx, accountID, region, func(a *domain.Account) ([]domain.Event, error) {
		return a.Reactivate(region)
	})
}

func (s *AccountService) Suspend(ctx context.Context, accountID, region, reason string) (*domain.Account, error) {
	return s.executor.Execute(ctx, accountID, region, func(a *domain.Account) ([]domain.Event, error) {
		return a.Suspend(region, reason)
	})
}

func (s *AccountService) Unsuspend(ctx context.Context, accountID, region string) (*domain.Account, error) {
	return s.executor.Execute(ctx, accountID, region, func(a *domain.Account) ([]domain.Event, error) {
		return a.Unsuspend(region)
	})
}

func (s *AccountService) Ban(ctx context.Context, accountID, region, reason string) (*domain.Account, error) {
	return s.executor.Execute(ctx, accountID, region, func(a *domain.Account) ([]domain.Event, error) {
		return a.Ban(region, reason)
	})
}

func (s *AccountService) Unban(ctx context.Context, accountID, region string) (*domain.Account, error) {
	return s.executor.Execute(ctx, accountID, region, func(a *domain.Account) ([]domain.Event, error) {
		return a.Unban(region)
	})
}

// RecordActivity updates last_active_at outside the optimistic concurrency
// protocol. Writes are throttled to one per five minutes per account.
func (s *AccountService) RecordActivity(ctx context.Context, accountID, region string) error {
	account, err := s.accounts.GetByID(ctx, accountID, region)
	if err != nil {
		return err
	}

	if !account.RecordActivity() {
		return nil
	}

	return s.accounts.TouchActivity(ctx, accountID, *account.LastActiveAt)
}
