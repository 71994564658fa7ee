package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"payguard/internal/application/verification/chain"
	"payguard/internal/application/verification/usecases"
	vo "payguard/internal/domain/verification/valueobjects"
	"payguard/internal/infrastructure/blockchain"
	"payguard/internal/infrastructure/config"
	"payguard/internal/infrastructure/database"
	"payguard/internal/infrastructure/migration"
	"payguard/internal/infrastructure/ratelimit"
	"payguard/internal/infrastructure/repository"
	"payguard/internal/infrastructure/scheduler"
	httpRouter "payguard/internal/interfaces/http"
	"payguard/internal/interfaces/http/handlers"
	"payguard/internal/interfaces/http/middleware"
	"payguard/internal/shared/db"
	"payguard/internal/shared/logger"
)

var (
	env         string
	autoMigrate bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the verification engine and HTTP API",
		Long:  `Start the payment verification engine: HTTP API, background verification workers, and the expiry scheduler.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "Automatically run database migrations on startup (not recommended for production)")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Server.Mode = mapEnvToGinMode(env)

	if err := logger.Init(&cfg.Logger); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	log := logger.NewLogger()

	log.Infow("starting verification engine",
		"environment", env,
		"auto_migrate", autoMigrate)

	gin.DefaultWriter = io.Discard
	gin.DebugPrintRouteFunc = func(httpMethod, absolutePath, handlerName string, nuHandlers int) {}

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	if autoMigrate {
		manager := migration.NewManagerWithStrategy(migration.NewGormAutoMigrateStrategy())
		if err := manager.Migrate(database.Get(), migration.AutoMigrateModels()...); err != nil {
			return fmt.Errorf("auto-migration failed: %w", err)
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer redisClient.Close()
		log.Infow("Redis connection established")
	}

	registry, err := buildAdapterRegistry(cfg, redisClient, log)
	if err != nil {
		return fmt.Errorf("failed to build chain adapters: %w", err)
	}

	store := repository.NewVerificationStore(database.Get())
	txManager := db.NewTransactionManager(database.Get())
	locks := usecases.NewPaymentLocks()

	verifyUC := usecases.NewVerifyPaymentUseCase(
		store, registry, locks, usecases.VerifyConfigFromShared(&cfg.Verification), log)
	submitQueue := usecases.NewVerificationQueue(
		verifyUC, store, cfg.Verification.WorkerPoolSize, cfg.Verification.QueueSize, log)
	submitUC := usecases.NewSubmitPaymentUseCase(store, txManager, submitQueue, &cfg.Verification, log)
	approveUC := usecases.NewApprovePaymentUseCase(store, locks, log)
	rejectUC := usecases.NewRejectPaymentUseCase(store, locks, log)
	getUC := usecases.NewGetVerificationUseCase(store, store)
	listUC := usecases.NewListVerificationsUseCase(store)
	reapUC := usecases.NewReapExpiredUseCase(store, locks, cfg.Verification.ExpireBlockchainFailed, log)

	submitQueue.Start()
	defer submitQueue.Stop()

	schedulerManager, err := scheduler.NewSchedulerManager(log)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	if err := schedulerManager.RegisterExpiryJob(reapUC); err != nil {
		return fmt.Errorf("failed to register expiry job: %w", err)
	}
	if err := schedulerManager.RegisterRecheckJob(submitQueue); err != nil {
		return fmt.Errorf("failed to register recheck job: %w", err)
	}
	schedulerManager.Start()
	defer func() {
		if err := schedulerManager.Stop(); err != nil {
			log.Errorw("failed to stop scheduler", "error", err)
		}
	}()

	handler := handlers.NewVerificationHandler(
		submitUC, verifyUC, approveUC, rejectUC, getUC, listUC, log)

	var rateLimiter *middleware.RateLimiter
	if redisClient != nil {
		rateLimiter = middleware.NewRateLimiter(redisClient, 60, time.Minute)
	}

	router := httpRouter.NewRouter(handler, rateLimiter, &cfg.Server, log)
	router.SetupRoutes()

	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      router.GetEngine(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting",
			"address", cfg.Server.GetAddr(),
			"mode", cfg.Server.Mode,
			"chains", registry.Chains())

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
		return err
	}

	log.Infow("server exited gracefully")
	return nil
}

// buildAdapterRegistry constructs one scan adapter per supported chain.
// Scan-API rate limits come from the per-chain configuration and are enforced
// through Redis when available, so multiple instances share one budget.
func buildAdapterRegistry(cfg *config.Config, redisClient *redis.Client, log logger.Interface) (*chain.Registry, error) {
	var limiter ratelimit.ScanLimiter = ratelimit.NoopLimiter{}
	if redisClient != nil {
		limits := make(map[string]int, len(cfg.Verification.Chains))
		for name, chainCfg := range cfg.Verification.Chains {
			limits[name] = chainCfg.RequestsPerMinute
		}
		limiter = ratelimit.NewRedisScanLimiter(redisClient, limits)
	}

	adapters := make([]chain.Adapter, 0, len(vo.AllChains()))
	for _, c := range []vo.Chain{vo.ChainEthereum, vo.ChainBSC, vo.ChainPolygon} {
		scanner, err := blockchain.NewEVMScanner(c, cfg.Verification.EtherscanAPIKey, limiter, log)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, scanner)
	}
	adapters = append(adapters, blockchain.NewTronScanner(cfg.Verification.TrongridAPIKey, limiter, log))

	return chain.NewRegistry(adapters...), nil
}

func mapEnvToGinMode(environment string) string {
	switch environment {
	case "production", "prod", "release":
		return "release"
	case "test", "testing":
		return "test"
	default:
		return "debug"
	}
}
