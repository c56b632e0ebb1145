package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/arnaudmaillet/core-platform-sub000/internal/domain"
	"github.com/arnaudmaillet/core-platform-sub000/pkg/mylogger"
	"github.com/arnaudmaillet/core-platform-sub000/pkg/utils"
)

// ProfileReader assembles the full profile view: the identity row from
// Postgres enriched with counters, behind a read-through cache.
type ProfileReader interface {
	GetView(ctx context.Context, accountID, region string) (*domain.Profile, error)
	ResolveHandle(ctx context.Context, handle string) (*domain.Profile, error)
	Invalidate(ctx context.Context, accountID string, handles ...string)
	Purge(ctx context.Context, accountID string, handles ...string) error
}

type compositeProfileRepo struct {
	identity ProfileIdentityStore
	counters CounterStore
	cache    ProfileCache
	breaker  *gobreaker.CircuitBreaker
	group    singleflight.Group
	tracer   trace.Tracer
	logger   *zap.Logger
}

func NewCompositeProfileRepository(
	identity ProfileIdentityStore,
	counters CounterStore,
	cache ProfileCache,
	breaker *gobreaker.CircuitBreaker,
	logger *zap.Logger,
) ProfileReader {
	return &compositeProfileRepo{
		identity: identity,
		counters: counters,
		cache:    cache,
		breaker:  breaker,
		logger:   logger,
		tracer:   otel.Tracer("repository/composite_profile_repo"),
	}
}

func (r *compositeProfileRepo) GetView(ctx context.Context, accountID, region string) (*domain.Profile, error) {
	ctx, span := r.tracer.Start(ctx, "CompositeProfileRepository.GetView")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", accountID),
		attribute.String("region_code", region),
	)

	if profile, ok := r.cache.GetProfile(ctx, accountID); ok {
		if profile.Region != region {
			return nil, domain.NewForbiddenError("profile belongs to another region")
		}

		span.SetAttributes(attribute.Bool("cache_hit", true))
		return profile, nil
	}

	// Concurrent misses for the same profile collapse into one assembly.
	key := fmt.Sprintf("view:%s:%s", region, accountID)
	result, err, shared := r.group.Do(key, func() (interface{}, error) {
		return r.assemble(ctx, accountID, region)
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Bool("coalesced", shared))
	return result.(*domain.Profile), nil
}

// assemble fetches the identity row and the counters in parallel. The
// identity row is authoritative; counter failures degrade to zero stats.
func (r *compositeProfileRepo) assemble(ctx context.Context, accountID, region string) (*domain.Profile, error) {
	statsCh := make(chan domain.ProfileStats, 1)
	go func() {
		stats, err := utils.ExecuteWithBreaker(r.breaker, func() (domain.ProfileStats, error) {
			return r.counters.GetStats(ctx, accountID)
		})
		if err != nil {
			mylogger.Warn(
				ctx,
				r.logger,
				"counter store degraded, serving zero stats",
				zap.String("account_id", accountID),
				zap.Error(err),
			)
			stats = domain.ProfileStats{}
		}
		statsCh <- stats
	}()

	profile, err := r.identity.GetByID(ctx, accountID, region)
	if err != nil {
		return nil, err
	}

	profile.RestoreStats(<-statsCh)

	// Cache population is best-effort and must not hold up the response.
	go func() {
		cacheCtx := context.WithoutCancel(ctx)
		r.cache.SetProfile(cacheCtx, profile)
		r.cache.SetHandleIndex(cacheCtx, profile.Handle, profile.AccountID)
	}()

	return profile, nil
}

func (r *compositeProfileRepo) ResolveHandle(ctx context.Context, handle string) (*domain.Profile, error) {
	ctx, span := r.tracer.Start(ctx, "CompositeProfileRepository.ResolveHandle")
	defer span.End()

	span.SetAttributes(
		attribute.String("handle", handle),
	)

	if accountID, ok := r.cache.GetHandleIndex(ctx, handle); ok {
		if profile, ok := r.cache.GetProfile(ctx, accountID); ok && profile.Handle == handle {
			return profile, nil
		}

		profile, err := r.resolveFresh(ctx, handle)
		if err == nil {
			return profile, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}

		// The index pointed at a handle that no longer exists; evict it.
		r.cache.DeleteHandleIndex(ctx, handle)
		return nil, err
	}

	return r.resolveFresh(ctx, handle)
}

func (r *compositeProfileRepo) resolveFresh(ctx context.Context, handle string) (*domain.Profile, error) {
	key := "handle:" + handle
	result, err, _ := r.group.Do(key, func() (interface{}, error) {
		accountID, region, err := r.identity.GetIDByHandle(ctx, handle)
		if err != nil {
			return nil, err
		}

		return r.assemble(ctx, accountID, region)
	})
	if err != nil {
		return nil, err
	}

	return result.(*domain.Profile), nil
}

// Invalidate drops the cached view and any handle index entries after a
// write. Passing the pre-write handle keeps a renamed profile from being
// resolvable under its old name.
func (r *compositeProfileRepo) Invalidate(ctx context.Context, accountID string, handles ...string) {
	r.cache.DeleteProfile(ctx, accountID)
	for _, handle := range handles {
		r.cache.DeleteHandleIndex(ctx, handle)
	}
}

// Purge removes every trace of an account from the fast stores: cached view,
// handle indexes and counters.
func (r *compositeProfileRepo) Purge(ctx context.Context, accountID string, handles ...string) error {
	r.cache.DeletePattern(ctx, profileKeyPrefix+accountID)
	for _, handle := range handles {
		r.cache.DeleteHandleIndex(ctx, handle)
	}

	if err := r.counters.Delete(ctx, accountID); err != nil {
		return fmt.Errorf("error purging counters: %w", err)
	}

	return nil
}
