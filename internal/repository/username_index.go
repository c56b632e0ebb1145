package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arnaudmaillet/core-platform-sub000/pkg/mylogger"
)

const usernameKeyPrefix = "username_to_id:"

// UsernameIndex maps a unique username to the (account id, region) pair it
// belongs to, mirroring the handle index on the profile side. Same contract
// as the cache: every error degrades to a miss.
type UsernameIndex interface {
	Resolve(ctx context.Context, username string) (accountID, region string, ok bool)
	Store(ctx context.Context, username, accountID, region string)
	Evict(ctx context.Context, username string)
}

type usernameIndexEntry struct {
	AccountID string `json:"account_id"`
	Region    string `json:"region_code"`
}

type usernameIndex struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewUsernameIndex(client *redis.Client, ttl time.Duration, logger *zap.Logger) UsernameIndex {
	return &usernameIndex{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func (i *usernameIndex) Resolve(ctx context.Context, username string) (string, string, bool) {
	key := usernameKeyPrefix + username

	raw, err := i.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			mylogger.Warn(
				ctx,
				i.logger,
				"username index read failed",
				zap.String("username", username),
				zap.Error(err),
			)
		}

		return "", "", false
	}

	var entry usernameIndexEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		mylogger.Warn(
			ctx,
			i.logger,
			"username index entry corrupt, evicting",
			zap.String("username", username),
			zap.Error(err),
		)
		i.client.Del(ctx, key)

		return "", "", false
	}

	return entry.AccountID, entry.Region, true
}

func (i *usernameIndex) Store(ctx context.Context, username, accountID, region string) {
	data, err := json.Marshal(usernameIndexEntry{AccountID: accountID, Region: region})
	if err != nil {
		return
	}

	if err := i.client.Set(ctx, usernameKeyPrefix+username, data, i.ttl).Err(); err != nil {
		mylogger.Warn(
			ctx,
			i.logger,
			"username index write failed",
			zap.String("username", username),
			zap.Error(err),
		)
	}
}

func (i *usernameIndex) Evict(ctx context.Context, username string) {
	if err := i.client.Del(ctx, usernameKeyPrefix+username).Err(); err != nil {
		mylogger.Warn(
			ctx,
			i.logger,
			"username index delete failed",
			zap.String("username", username),
			zap.Error(err),
		)
	}
}
