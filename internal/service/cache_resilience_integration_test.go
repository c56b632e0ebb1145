package service_test

import (
	"encoding/json"
	"time"

	"github.com/arnaudmaillet/core-platform-sub000/internal/domain"
)

func (s *IntegrationTestSuite) TestCorruptProfileSnapshotFallsBackAndRepopulates() {
	s.createAccount("acc-1", "eu", "casey")
	_, err := s.Profiles.CreateProfile(s.Ctx, "acc-1", "eu", "Casey", "casey_h")
	s.Require().NoError(err)

	// Warm the handle index, wait for the background population to land,
	// then overwrite the snapshot with garbage so the next read hits the
	// index and an unparseable cached view.
	_, err = s.Profiles.GetProfileByHandle(s.Ctx, "casey_h")
	s.Require().NoError(err)
	s.Require().Eventually(func() bool {
		return s.RedisClient.Exists(s.Ctx, "profile:acc-1").Val() == 1
	}, 5*time.Second, 50*time.Millisecond)
	s.Require().NoError(s.RedisClient.Set(s.Ctx, "profile:acc-1", "not json", time.Minute).Err())

	profile, err := s.Profiles.GetProfileByHandle(s.Ctx, "casey_h")
	s.Require().NoError(err, "a corrupt cache entry must read like a miss")
	s.Require().Equal("acc-1", profile.AccountID)
	s.Require().Equal("casey_h", profile.Handle)

	s.Require().Eventually(func() bool {
		raw, err := s.RedisClient.Get(s.Ctx, "profile:acc-1").Result()
		if err != nil {
			return false
		}
		var cached domain.Profile
		return json.Unmarshal([]byte(raw), &cached) == nil && cached.Handle == "casey_h"
	}, 5*time.Second, 50*time.Millisecond, "fallback should replace the corrupt snapshot")

	profile, err = s.Profiles.GetProfile(s.Ctx, "acc-1", "eu")
	s.Require().NoError(err)
	s.Require().Equal("casey_h", profile.Handle)
}

func (s *IntegrationTestSuite) TestCorruptHandleIndexStillResolves() {
	s.createAccount("acc-1", "eu", "casey")
	_, err := s.Profiles.CreateProfile(s.Ctx, "acc-1", "eu", "Casey", "casey_h")
	s.Require().NoError(err)

	// Index entries are raw account ids; a scribbled value points at an
	// account that does not exist.
	s.Require().NoError(s.RedisClient.Set(s.Ctx, "handle_to_id:casey_h", "{{not an id}}", time.Minute).Err())

	profile, err := s.Profiles.GetProfileByHandle(s.Ctx, "casey_h")
	s.Require().NoError(err)
	s.Require().Equal("acc-1", profile.AccountID)
}

func (s *IntegrationTestSuite) TestCorruptUsernameIndexFallsBackAndRepopulates() {
	s.createAccount("acc-1", "eu", "casey")

	s.Require().NoError(s.RedisClient.Set(s.Ctx, "username_to_id:casey", "not json", time.Minute).Err())

	account, err := s.Accounts.ResolveByUsername(s.Ctx, "casey")
	s.Require().NoError(err, "a corrupt index entry must read like a miss")
	s.Require().Equal("acc-1", account.ID)

	s.Require().Eventually(func() bool {
		raw, err := s.RedisClient.Get(s.Ctx, "username_to_id:casey").Result()
		if err != nil {
			return false
		}
		var entry struct {
			AccountID string `json:"account_id"`
			Region    string `json:"region_code"`
		}
		return json.Unmarshal([]byte(raw), &entry) == nil && entry.AccountID == "acc-1"
	}, 5*time.Second, 50*time.Millisecond, "fallback should replace the corrupt index entry")
}
