package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"influnest/internal/api"
	"influnest/internal/auth"
	"influnest/internal/cache"
	"influnest/internal/config"
	"influnest/internal/escrow"
	"influnest/internal/events"
	"influnest/internal/ledger"
	"influnest/internal/lifecycle"
	"influnest/internal/oracle"
	"influnest/internal/orchestrator"
	"influnest/internal/pipeline"
	"influnest/internal/retry"
	"influnest/internal/services"
	"influnest/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	fmt.Println("🌟 Starting InfluNest...")

	// 1. Load configuration
	_ = godotenv.Load()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	// 2. Configure logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("Configuration loaded",
		"store_driver", cfg.StoreDriver,
		"ledger_driver", cfg.LedgerDriver,
		"api_port", cfg.APIPort,
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	strategy := retry.NewStrategy(cfg.Retry)

	// 3. Initialize storage
	var (
		repository storage.Repository
		postgres   *storage.PostgresRepository
	)
	if cfg.NeedsDatabase() {
		err := strategy.Execute(ctx, "connect_database", func(ctx context.Context) error {
			var err error
			postgres, err = storage.NewPostgresRepository(ctx, cfg.DatabaseURL)
			return err
		})
		if err != nil {
			log.Fatalf("❌ Failed to connect to database: %v", err)
		}
		defer postgres.Close()

		if err := postgres.Migrate(ctx); err != nil {
			log.Fatalf("❌ Failed to apply schema: %v", err)
		}
		slog.Info("Database connected successfully")
	}

	if cfg.StoreDriver == config.DriverPostgres {
		repository = postgres
	} else {
		repository = storage.NewMemoryRepository()
		slog.Warn("Using in-memory campaign store, state is lost on restart")
	}

	// 4. Value ledger
	var transfers ledger.ValueTransfer
	if cfg.LedgerDriver == config.DriverPostgres {
		transfers = ledger.NewPostgresLedger(postgres.Pool())
	} else {
		transfers = ledger.NewMemoryLedger()
		slog.Warn("Using in-memory value ledger, balances are lost on restart")
	}

	// 5. Optional read cache, shared replay guard
	var campaignCache cache.CampaignCache
	var replayGuard auth.ReplayGuard = auth.NewMemoryReplayGuard(nil)
	svcs := []services.Service{
		services.NewAuditService(repository),
		services.NewMetricsService(),
	}

	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("❌ Failed to connect to Redis: %v", err)
		}
		defer client.Close()

		redisCache := cache.NewRedisCampaignCache(client, cfg.CacheTTL)
		campaignCache = redisCache
		svcs = append(svcs, services.NewCacheService(repository, redisCache))
		replayGuard = cache.NewRedisReplayGuard(client)
		slog.Info("Redis cache enabled", "ttl", cfg.CacheTTL)
	}

	// 6. Optional event stream
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Fatalf("❌ Failed to create Kafka publisher: %v", err)
		}
		defer publisher.Close()

		svcs = append(svcs, services.NewPublishService(publisher, strategy))
		slog.Info("Kafka event stream enabled",
			"brokers", cfg.KafkaBrokers,
			"topic", cfg.KafkaTopic,
		)
	}

	// 7. Orchestrator fans committed events out to every service
	orch := orchestrator.New(svcs)
	slog.Info("Orchestrator enabled",
		"services", len(orch.Services()),
	)

	// 8. Domain services
	registry := oracle.NewRegistry(repository, orch, nil)
	lifecycleService := lifecycle.NewService(lifecycle.Dependencies{
		Repository: repository,
		Oracle:     registry,
		Custodian:  escrow.NewCustodian(transfers),
		Dispatcher: orch,
		Cache:      campaignCache,
	})
	batch := pipeline.NewBatchReporter(pipeline.Config{
		WorkerCount: cfg.PipelineWorkerCount,
		BufferSize:  cfg.PipelineBufferSize,
	}, lifecycleService)

	// 9. API server
	server := api.NewServer(cfg.APIPort, api.Dependencies{
		Repository:    repository,
		Lifecycle:     lifecycleService,
		Oracle:        registry,
		Batch:         batch,
		Authenticator: auth.NewSignatureAuthenticator(cfg.AuthMaxClockSkew, nil).WithReplayGuard(replayGuard),
	})
	if err := server.Start(); err != nil {
		log.Fatalf("❌ Failed to start API server: %v", err)
	}

	// 10. Wait for shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Warn("Interrupt received, shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error stopping API server", "error", err)
	}
	cancel()

	slog.Info("InfluNest stopped")
}
