package service

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arnaudmaillet/core-platform-sub000/internal/domain"
	"github.com/arnaudmaillet/core-platform-sub000/internal/repository"
	"github.com/arnaudmaillet/core-platform-sub000/pkg/mylogger"
)

type ProfileService struct {
	executor *Executor[*domain.Profile]
	reader   repository.ProfileReader
	counters repository.CounterStore
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewProfileService(
	executor *Executor[*domain.Profile],
	reader repository.ProfileReader,
	counters repository.CounterStore,
	logger *zap.Logger,
) *ProfileService {
	return &ProfileService{
		executor: executor,
		reader:   reader,
		counters: counters,
		logger:   logger,
		tracer:   otel.Tracer("service/profile_service"),
	}
}

func (s *ProfileService) CreateProfile(ctx context.Context, accountID, region, displayName, handle string) (*domain.Profile, error) {
	ctx, span := s.tracer.Start(ctx, "ProfileService.CreateProfile")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", accountID),
		attribute.String("handle", handle),
	)

	if handle == "" {
		return nil, domain.NewValidationError("handle", "must not be empty")
	}
	if displayName == "" {
		return nil, domain.NewValidationError("display_name", "must not be empty")
	}

	profile := domain.NewProfile(accountID, region, displayName, handle)

	if err := s.executor.Create(ctx, profile, profile.Created()); err != nil {
		return nil, err
	}

	return profile, nil
}

func (s *ProfileService) GetProfile(ctx context.Context, accountID, region string) (*domain.Profile, error) {
	return s.reader.GetView(ctx, accountID, region)
}

func (s *ProfileService) GetProfileByHandle(ctx context.Context, handle string) (*domain.Profile, error) {
	return s.reader.ResolveHandle(ctx, handle)
}

// mutate runs one profile mutation and drops the cached view before
// returning, so the next read reassembles from the authoritative stores.
func (s *ProfileService) mutate(ctx context.Context, accountID, region string, fn func(*domain.Profile) ([]domain.Event, error)) (*domain.Profile, error) {
	profile, err := s.executor.Execute(ctx, accountID, region, fn)
	if err != nil {
		return nil, err
	}

	s.reader.Invalidate(ctx, accountID)
	return profile, nil
}

func (s *ProfileService) UpdateDisplayName(ctx context.Context, accountID, region, newName string) (*domain.Profile, error) {
	return s.mutate(ctx, accountID, region, func(p *domain.Profile) ([]domain.Event, error) {
		return p.UpdateDisplayName(region, newName)
	})
}

// UpdateHandle renames the profile's resolution key. Both the old and the
// new handle index entries are invalidated in the write path; the new index
// entry reappears lazily on the next resolve.
func (s *ProfileService) UpdateHandle(ctx context.Context, accountID, region, newHandle string) (*domain.Profile, error) {
	if newHandle == "" {
		return nil, domain.NewValidationError("handle", "must not be empty")
	}

	var oldHandle string
	profile, err := s.executor.Execute(ctx, accountID, region, func(p *domain.Profile) ([]domain.Event, error) {
		oldHandle = p.Handle
		return p.UpdateHandle(region, newHandle)
	})
	if err != nil {
		return nil, err
	}

	s.reader.Invalidate(ctx, accountID, oldHandle, newHandle)
	return profile, nil
}

func (s *ProfileService) UpdateBio(ctx context.Context, accountID, region, newBio string) (*domain.Profile, error) {
	return s.mutate(ctx, accountID, region, func(p *domain.Profile) ([]domain.Event, error) {
		return p.UpdateBio(region, newBio)
	})
}

func (s *ProfileService) UpdateAvatar(ctx context.Context, accountID, region, newURL string) (*domain.Profile, error) {
	return s.mutate(ctx, accountID, region, func(p *domain.Profile) ([]domain.Event, error) {
		return p.UpdateAvatar(region, newURL)
	})
}

func (s *ProfileService) RemoveAvatar(ctx context.Context, accountID, region string) (*domain.Profile, error) {
	return s.mutate(ctx, accountID, region, func(p *domain.Profile) ([]domain.Event, error) {
		return p.RemoveAvatar(region)
	})
}

func (s *ProfileService) UpdateBanner(ctx context.Context, accountID, region, newURL string) (*domain.Profile, error) {
	return s.mutate(ctx, accountID, region, func(p *domain.Profile) ([]domain.Event, error) {
		return p.UpdateBanner(region, newURL)
	})
}

func (s *ProfileService) RemoveBanner(ctx context.Context, accountID, region string) (*domain.Profile, error) {
	return s.mutate(ctx, accountID, region, func(p *domain.Profile) ([]domain.Event, error) {
		return p.RemoveBanner(region)
	})
}

func (s *ProfileService) UpdateSocialLinks(ctx context.Context, accountID, region string, newLinks map[string]string) (*domain.Profile, error) {
	return s.mutate(ctx, accountID, region, func(p *domain.Profile) ([]domain.Event, error) {
		return p.UpdateSocialLinks(region, newLinks)
	})
}

func (s *ProfileService) UpdateLocationLabel(ctx context.Context, accountID, region, newLabel string) (*domain.Profile, error) {
	return s.mutate(ctx, accountID, region, func(p *domain.Profile) ([]domain.Event, error) {
		return p.UpdateLocationLabel(region, newLabel)
	})
}

func (s *ProfileService) UpdatePrivacy(ctx context.Context, accountID, region string, isPrivate bool) (*domain.Profile, error) {
	return s.mutate(ctx, accountID, region, func(p *domain.Profile) ([]domain.Event, error) {
		return p.UpdatePrivacy(region, isPrivate)
	})
}

func (s *ProfileService) IncrementPostCount(ctx context.Context, accountID, region, postID string) (*domain.Profile, error) {
	return s.mutate(ctx, accountID, region, func(p *domain.Profile) ([]domain.Event, error) {
		return p.IncrementPostCount(region, postID)
	})
}

func (s *ProfileService) DecrementPostCount(ctx context.Context, accountID, region, postID string) (*domain.Profile, error) {
	return s.mutate(ctx, accountID, region, func(p *domain.Profile) ([]domain.Event, error) {
		return p.DecrementPostCount(region, postID)
	})
}

// AdjustFollowers applies a follower delta straight to the counter store.
// Counters sit outside the versioned row, so this is not an executor command.
func (s *ProfileService) AdjustFollowers(ctx context.Context, accountID, region string, delta int64) (int64, error) {
	if _, err := s.reader.GetView(ctx, accountID, region); err != nil {
		return 0, err
	}

	count, err := s.counters.AdjustFollowers(ctx, accountID, delta)
	if err != nil {
		return 0, err
	}

	s.reader.Invalidate(ctx, accountID)
	return count, nil
}

func (s *ProfileService) AdjustFollowing(ctx context.Context, accountID, region string, delta int64) (int64, error) {
	if _, err := s.reader.GetView(ctx, accountID, region); err != nil {
		return 0, err
	}

	count, err := s.counters.AdjustFollowing(ctx, accountID, delta)
	if err != nil {
		return 0, err
	}

	s.reader.Invalidate(ctx, accountID)
	return count, nil
}

// RefreshStats logs and returns the freshly assembled view, bypassing the
// cache entirely.
func (s *ProfileService) RefreshStats(ctx context.Context, accountID, region string) (*domain.Profile, error) {
	s.reader.Invalidate(ctx, accountID)

	profile, err := s.reader.GetView(ctx, accountID, region)
	if err != nil {
		return nil, err
	}

	mylogger.Debug(
		ctx,
		s.logger,
		"profile stats refreshed",
		zap.String("account_id", accountID),
		zap.Int64("follower_count", profile.Stats.FollowerCount),
	)

	return profile, nil
}
