package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/arnaudmaillet/core-platform-sub000/internal/domain"
	"github.com/arnaudmaillet/core-platform-sub000/internal/repository"
	"github.com/arnaudmaillet/core-platform-sub000/internal/service"
	transporthttp "github.com/arnaudmaillet/core-platform-sub000/internal/transport/http"
	"github.com/arnaudmaillet/core-platform-sub000/internal/transport/http/handler"
	"github.com/arnaudmaillet/core-platform-sub000/pkg/config"
	"github.com/arnaudmaillet/core-platform-sub000/pkg/db"
	"github.com/arnaudmaillet/core-platform-sub000/pkg/kafka"
	"github.com/arnaudmaillet/core-platform-sub000/pkg/mylogger"
	outboxrepo "github.com/arnaudmaillet/core-platform-sub000/pkg/outbox/repository"
	"github.com/arnaudmaillet/core-platform-sub000/pkg/outbox/worker"
	"github.com/arnaudmaillet/core-platform-sub000/pkg/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()

	logger, err := config.NewLogger(config.LoggerConfig{
		Level: "info",
		Env:   cfg.Env,
	})
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	tp, err := utils.InitTracer(ctx, "identity-service", cfg.Env)
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}

	pool, err := db.NewPostgresDB(cfg.Postgres.URL)
	if err != nil {
		log.Fatalf("failed to create pool: %v", err)
	}

	cacheClient, err := db.NewRedisClient(cfg.Cache.Addr, cfg.Cache.DB)
	if err != nil {
		log.Fatalf("failed to connect cache redis: %v", err)
	}
	counterClient, err := db.NewRedisClient(cfg.Counters.Addr, cfg.Counters.DB)
	if err != nil {
		log.Fatalf("failed to connect counters redis: %v", err)
	}

	kafkaProducer, err := kafka.NewProducer(cfg.Kafka.Brokers)
	if err != nil {
		log.Fatalf("error creating kafka producer: %v", err)
	}

	accountRepo := repository.NewAccountRepository(pool, logger)
	metadataRepo := repository.NewMetadataRepository(pool, logger)
	settingsRepo := repository.NewSettingsRepository(pool, logger)
	profileRepo := repository.NewProfileIdentityRepository(pool, logger)
	counterStore := repository.NewCounterStore(counterClient, logger)
	profileCache := repository.NewProfileCache(cacheClient, cfg.Cache.TTL, logger)
	usernameIndex := repository.NewUsernameIndex(cacheClient, cfg.Cache.TTL, logger)

	counterBreaker := utils.NewBreaker("profile-counters", 30*time.Second)
	profileReader := repository.NewCompositeProfileRepository(
		profileRepo,
		counterStore,
		profileCache,
		counterBreaker,
		logger,
	)

	outboxRepo := outboxrepo.NewOutboxRepository(pool, logger)

	accountExecutor := service.NewExecutor[*domain.Account](
		pool, accountRepo, outboxRepo, cfg.Kafka.Topic,
		cfg.Executor.MaxRetries, cfg.Executor.BaseBackoff, logger,
	)
	metadataExecutor := service.NewExecutor[*domain.AccountMetadata](
		pool, metadataRepo, outboxRepo, cfg.Kafka.Topic,
		cfg.Executor.MaxRetries, cfg.Executor.BaseBackoff, logger,
	)
	settingsExecutor := service.NewExecutor[*domain.AccountSettings](
		pool, settingsRepo, outboxRepo, cfg.Kafka.Topic,
		cfg.Executor.MaxRetries, cfg.Executor.BaseBackoff, logger,
	)
	profileExecutor := service.NewExecutor[*domain.Profile](
		pool, profileRepo, outboxRepo, cfg.Kafka.Topic,
		cfg.Executor.MaxRetries, cfg.Executor.BaseBackoff, logger,
	)

	accountService := service.NewAccountService(accountExecutor, accountRepo, usernameIndex, logger)
	metadataService := service.NewMetadataService(metadataExecutor, metadataRepo, logger)
	settingsService := service.NewSettingsService(settingsExecutor, settingsRepo, logger)
	profileService := service.NewProfileService(profileExecutor, profileReader, counterStore, logger)
	migrationService := service.NewRegionMigrationService(
		accountExecutor, metadataExecutor, settingsExecutor, logger,
	)
	deletionService := service.NewDeletionService(
		pool, accountRepo, metadataRepo, settingsRepo, profileRepo,
		profileReader, usernameIndex, outboxRepo, cfg.Kafka.Topic, logger,
	)

	outboxProcessor := worker.NewOutboxProcessor(
		pool, outboxRepo, kafkaProducer, logger,
		cfg.Outbox.BatchSize, cfg.Outbox.Interval,
	)
	go outboxProcessor.Start(ctx)

	app := fiber.New(fiber.Config{
		ReadTimeout: cfg.HTTP.Timeout,
	})
	transporthttp.RegisterRoutes(app, &transporthttp.Handlers{
		Account: handler.NewAccountHandler(
			accountService, metadataService, settingsService,
			deletionService, migrationService, logger,
		),
		Moderation: handler.NewModerationHandler(metadataService, logger),
		Settings:   handler.NewSettingsHandler(settingsService, logger),
		Profile:    handler.NewProfileHandler(profileService, logger),
	})

	go func() {
		mylogger.Info(ctx, logger, "HTTP server listening", zap.String("port", cfg.HTTP.Port))
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			log.Fatalf("error serving http: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, exit := context.WithTimeout(context.Background(), time.Second*5)
	defer exit()

	mylogger.Info(shutdownCtx, logger, "Shutting down identity server")

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "HTTP shutdown failed", zap.Error(err))
	}

	if err := kafkaProducer.Close(); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to close kafka producer", zap.Error(err))
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to shut down telemetry", zap.Error(err))
	}

	if err := cacheClient.Close(); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to close cache client", zap.Error(err))
	}
	if err := counterClient.Close(); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to close counter client", zap.Error(err))
	}

	pool.Close()
}
