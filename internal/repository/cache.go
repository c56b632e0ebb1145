package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arnaudmaillet/core-platform-sub000/internal/domain"
	"github.com/arnaudmaillet/core-platform-sub000/pkg/mylogger"
)

const (
	profileKeyPrefix = "profile:"
	handleKeyPrefix  = "handle_to_id:"
)

// ProfileCache is the read-through layer in front of the composite profile
// repository. Every method degrades to a miss on error: the cache may slow
// reads down when Redis is unhealthy but never fails them.
type ProfileCache interface {
	GetProfile(ctx context.Context, accountID string) (*domain.Profile, bool)
	SetProfile(ctx context.Context, profile *domain.Profile)
	DeleteProfile(ctx context.Context, accountID string)
	GetHandleIndex(ctx context.Context, handle string) (string, bool)
	SetHandleIndex(ctx context.Context, handle, accountID string)
	DeleteHandleIndex(ctx context.Context, handle string)
	DeletePattern(ctx context.Context, prefix string)
}

type profileCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewProfileCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) ProfileCache {
	return &profileCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *profileCache) GetProfile(ctx context.Context, accountID string) (*domain.Profile, bool) {
	key := profileKeyPrefix + accountID

	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			mylogger.Warn(
				ctx,
				c.logger,
				"profile cache read failed",
				zap.String("account_id", accountID),
				zap.Error(err),
			)
		}

		return nil, false
	}

	var profile domain.Profile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		// A corrupt entry is a miss; drop it so the next read repopulates.
		mylogger.Warn(
			ctx,
			c.logger,
			"profile cache entry corrupt, evicting",
			zap.String("account_id", accountID),
			zap.Error(err),
		)
		c.client.Del(ctx, key)

		return nil, false
	}

	return &profile, true
}

func (c *profileCache) SetProfile(ctx context.Context, profile *domain.Profile) {
	data, err := json.Marshal(profile)
	if err != nil {
		mylogger.Warn(
			ctx,
			c.logger,
			"profile cache marshal failed",
			zap.String("account_id", profile.AccountID),
			zap.Error(err),
		)

		return
	}

	if err := c.client.Set(ctx, profileKeyPrefix+profile.AccountID, data, c.ttl).Err(); err != nil {
		mylogger.Warn(
			ctx,
			c.logger,
			"profile cache write failed",
			zap.String("account_id", profile.AccountID),
			zap.Error(err),
		)
	}
}

func (c *profileCache) DeleteProfile(ctx context.Context, accountID string) {
	if err := c.client.Del(ctx, profileKeyPrefix+accountID).Err(); err != nil {
		mylogger.Warn(
			ctx,
			c.logger,
			"profile cache delete failed",
			zap.String("account_id", accountID),
			zap.Error(err),
		)
	}
}

// DeletePattern sweeps every key under a prefix with SCAN so it never blocks
// the server the way KEYS would.
func (c *profileCache) DeletePattern(ctx context.Context, prefix string) {
	iter := c.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			mylogger.Warn(
				ctx,
				c.logger,
				"profile cache pattern delete failed",
				zap.String("key", iter.Val()),
				zap.Error(err),
			)
		}
	}
	if err := iter.Err(); err != nil {
		mylogger.Warn(
			ctx,
			c.logger,
			"profile cache scan failed",
			zap.String("prefix", prefix),
			zap.Error(err),
		)
	}
}

func (c *profileCache) GetHandleIndex(ctx context.Context, handle string) (string, bool) {
	accountID, err := c.client.Get(ctx, handleKeyPrefix+handle).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			mylogger.Warn(
				ctx,
				c.logger,
				"handle index read failed",
				zap.String("handle", handle),
				zap.Error(err),
			)
		}

		return "", false
	}

	return accountID, true
}

func (c *profileCache) SetHandleIndex(ctx context.Context, handle, accountID string) {
	if err := c.client.Set(ctx, handleKeyPrefix+handle, accountID, c.ttl).Err(); err != nil {
		mylogger.Warn(
			ctx,
			c.logger,
			"handle index write failed",
			zap.String("handle", handle),
			zap.Error(err),
		)
	}
}

func (c *profileCache) DeleteHandleIndex(ctx context.Context, handle string) {
	if err := c.client.Del(ctx, handleKeyPrefix+handle).Err(); err != nil {
		mylogger.Warn(
			ctx,
			c.logger,
			"handle index delete failed",
			zap.String("handle", handle),
			zap.Error(err),
		)
	}
}
