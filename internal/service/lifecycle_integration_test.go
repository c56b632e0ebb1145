package service_test

import (
	"sync"
	"time"

	"github.com/arnaudmaillet/core-platform-sub000/internal/domain"
)

func (s *IntegrationTestSuite) TestChangeUsernamePersistsVersionAndRelaysOutbox() {
	s.createAccount("acc-1", "eu", "before")

	account, err := s.Accounts.ChangeUsername(s.Ctx, "acc-1", "eu", "after")
	s.Require().NoError(err)
	s.Require().Equal(int64(2), account.Version)

	var (
		username string
		version  int64
	)
	err = s.DbPool.QueryRow(s.Ctx,
		`SELECT username, version FROM accounts WHERE id = $1`, "acc-1",
	).Scan(&username, &version)
	s.Require().NoError(err)
	s.Require().Equal("after", username)
	s.Require().Equal(int64(2), version)

	s.Require().Eventually(func() bool {
		var published int
		err := s.DbPool.QueryRow(s.Ctx,
			`SELECT count(*) FROM outbox
			 WHERE aggregate_id = $1 AND event_type = 'UsernameChanged' AND published_at IS NOT NULL`,
			"acc-1",
		).Scan(&published)
		return err == nil && published == 1
	}, 10*time.Second, 100*time.Millisecond, "outbox worker should relay the event")
}

func (s *IntegrationTestSuite) TestConcurrentTrustAdjustmentsLoseNoUpdates() {
	s.createAccount("acc-1", "eu", "writer")
	_, err := s.Metadata.CreateMetadata(s.Ctx, "acc-1", "eu", 10)
	s.Require().NoError(err)

	const writers = 4

	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := range writers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Metadata.IncreaseTrustScore(s.Ctx, "acc-1", "eu", 1, "concurrent bump")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		s.Require().NoError(err)
	}

	meta, err := s.Metadata.GetMetadata(s.Ctx, "acc-1", "eu")
	s.Require().NoError(err)
	s.Require().Equal(int64(10+writers), meta.TrustScore)
	s.Require().Equal(int64(1+writers), meta.Version)
}

func (s *IntegrationTestSuite) TestHandleResolutionMergesCountersAndTracksRenames() {
	s.createAccount("acc-1", "eu", "casey")
	_, err := s.Profiles.CreateProfile(s.Ctx, "acc-1", "eu", "Casey", "casey_h")
	s.Require().NoError(err)

	count, err := s.Profiles.AdjustFollowers(s.Ctx, "acc-1", "eu", 3)
	s.Require().NoError(err)
	s.Require().Equal(int64(3), count)

	profile, err := s.Profiles.GetProfileByHandle(s.Ctx, "casey_h")
	s.Require().NoError(err)
	s.Require().Equal("acc-1", profile.AccountID)
	s.Require().Equal(int64(3), profile.Stats.FollowerCount)

	_, err = s.Profiles.UpdateHandle(s.Ctx, "acc-1", "eu", "casey_new")
	s.Require().NoError(err)

	_, err = s.Profiles.GetProfileByHandle(s.Ctx, "casey_h")
	s.Require().ErrorIs(err, domain.ErrNotFound, "old handle must stop resolving right after the rename")

	profile, err = s.Profiles.GetProfileByHandle(s.Ctx, "casey_new")
	s.Require().NoError(err)
	s.Require().Equal("acc-1", profile.AccountID)
}

func (s *IntegrationTestSuite) TestDeleteAccountRemovesEveryRowAndEmitsTombstone() {
	s.createAccount("acc-1", "eu", "leaver")
	_, err := s.Metadata.CreateMetadata(s.Ctx, "acc-1", "eu", 0)
	s.Require().NoError(err)
	_, err = s.Settings.CreateSettings(s.Ctx, "acc-1", "eu")
	s.Require().NoError(err)
	_, err = s.Profiles.CreateProfile(s.Ctx, "acc-1", "eu", "Leaver", "leaver_h")
	s.Require().NoError(err)

	s.Require().NoError(s.Deletion.DeleteAccount(s.Ctx, "acc-1", "eu"))

	for _, table := range []string{"accounts", "account_metadata", "account_settings", "user_profiles"} {
		var n int
		err := s.DbPool.QueryRow(s.Ctx,
			`SELECT count(*) FROM `+table+` WHERE `+idColumn(table)+` = $1`, "acc-1",
		).Scan(&n)
		s.Require().NoError(err)
		s.Require().Zero(n, "no %s row should survive deletion", table)
	}

	var tombstones int
	err = s.DbPool.QueryRow(s.Ctx,
		`SELECT count(*) FROM outbox WHERE aggregate_id = $1 AND event_type = 'AccountDeleted'`,
		"acc-1",
	).Scan(&tombstones)
	s.Require().NoError(err)
	s.Require().Equal(1, tombstones)

	_, err = s.Profiles.GetProfileByHandle(s.Ctx, "leaver_h")
	s.Require().ErrorIs(err, domain.ErrNotFound)
}

func idColumn(table string) string {
	if table == "accounts" {
		return "id"
	}
	return "account_id"
}
