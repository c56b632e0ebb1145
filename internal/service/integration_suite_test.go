package service_test

import (
	"context"
	"testing"
	"time"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/arnaudmaillet/core-platform-sub000/internal/domain"
	"github.com/arnaudmaillet/core-platform-sub000/internal/repository"
	"github.com/arnaudmaillet/core-platform-sub000/internal/service"
	"github.com/arnaudmaillet/core-platform-sub000/pkg/kafka"
	outboxRepository "github.com/arnaudmaillet/core-platform-sub000/pkg/outbox/repository"
	"github.com/arnaudmaillet/core-platform-sub000/pkg/outbox/worker"
	"github.com/arnaudmaillet/core-platform-sub000/pkg/testsuite"
	"github.com/arnaudmaillet/core-platform-sub000/pkg/utils"
)

type IntegrationTestSuite struct {
	testsuite.BaseSuite

	Accounts     *service.AccountService
	Metadata     *service.MetadataService
	Settings     *service.SettingsService
	Profiles     *service.ProfileService
	Deletion     *service.DeletionService
	TestProducer kafka.Producer
	workerCancel context.CancelFunc
}

func (s *IntegrationTestSuite) SetupSuite() {
	s.BaseSuite.SetupInfrastructure("../../migrations")
}

func (s *IntegrationTestSuite) TearDownSuite() {
	s.BaseSuite.TearDownInfrastructure()
}

func (s *IntegrationTestSuite) SetupTest() {
	s.BaseSuite.TruncateTable("accounts")
	s.BaseSuite.TruncateTable("account_metadata")
	s.BaseSuite.TruncateTable("account_settings")
	s.BaseSuite.TruncateTable("user_profiles")
	s.BaseSuite.TruncateTable("outbox")
	s.BaseSuite.FlushRedis()

	logger := zap.NewNop()

	accountRepo := repository.NewAccountRepository(s.DbPool, logger)
	metadataRepo := repository.NewMetadataRepository(s.DbPool, logger)
	settingsRepo := repository.NewSettingsRepository(s.DbPool, logger)
	profileRepo := repository.NewProfileIdentityRepository(s.DbPool, logger)
	counterStore := repository.NewCounterStore(s.RedisClient, logger)
	profileCache := repository.NewProfileCache(s.RedisClient, time.Minute, logger)
	usernameIndex := repository.NewUsernameIndex(s.RedisClient, time.Minute, logger)
	outboxRepo := outboxRepository.NewOutboxRepository(s.DbPool, logger)

	reader := repository.NewCompositeProfileRepository(
		profileRepo,
		counterStore,
		profileCache,
		utils.NewBreaker("test-counters", time.Second),
		logger,
	)

	const topic = "identity.events"

	accountExecutor := service.NewExecutor[*domain.Account](
		s.DbPool, accountRepo, outboxRepo, topic, 3, time.Millisecond, logger,
	)
	metadataExecutor := service.NewExecutor[*domain.AccountMetadata](
		s.DbPool, metadataRepo, outboxRepo, topic, 3, time.Millisecond, logger,
	)
	settingsExecutor := service.NewExecutor[*domain.AccountSettings](
		s.DbPool, settingsRepo, outboxRepo, topic, 3, time.Millisecond, logger,
	)
	profileExecutor := service.NewExecutor[*domain.Profile](
		s.DbPool, profileRepo, outboxRepo, topic, 3, time.Millisecond, logger,
	)

	s.Accounts = service.NewAccountService(accountExecutor, accountRepo, usernameIndex, logger)
	s.Metadata = service.NewMetadataService(metadataExecutor, metadataRepo, logger)
	s.Settings = service.NewSettingsService(settingsExecutor, settingsRepo, logger)
	s.Profiles = service.NewProfileService(profileExecutor, reader, counterStore, logger)
	s.Deletion = service.NewDeletionService(
		s.DbPool, accountRepo, metadataRepo, settingsRepo, profileRepo,
		reader, usernameIndex, outboxRepo, topic, logger,
	)

	var err error
	s.TestProducer, err = kafka.NewProducer(s.KafkaBrokers)
	s.Require().NoError(err, "failed to create kafka producer")

	processor := worker.NewOutboxProcessor(s.DbPool, outboxRepo, s.TestProducer, logger, 50, 100*time.Millisecond)

	workerCtx, cancel := context.WithCancel(s.Ctx)
	s.workerCancel = cancel

	go processor.Start(workerCtx)
}

func (s *IntegrationTestSuite) TearDownTest() {
	if s.workerCancel != nil {
		s.workerCancel()
	}
	if s.TestProducer != nil {
		_ = s.TestProducer.Close()
	}
}

func (s *IntegrationTestSuite) createAccount(accountID, region, username string) *domain.Account {
	account, err := s.Accounts.CreateAccount(s.Ctx, service.CreateAccountParams{
		AccountID: accountID,
		Region:    region,
		Username:  username,
		Email:     username + "@example.com",
	})
	s.Require().NoError(err)
	return account
}

func TestIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed suite in short mode")
	}
	suite.Run(t, new(IntegrationTestSuite))
}
