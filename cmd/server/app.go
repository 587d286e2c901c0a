package main

import (
	"context"
	"fmt"
	"net/url"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"tour-video-backend/docs"
	"tour-video-backend/internal/auth"
	"tour-video-backend/internal/config"
	"tour-video-backend/internal/database"
	"tour-video-backend/internal/logging"
	"tour-video-backend/internal/runway"
	"tour-video-backend/internal/services"
	"tour-video-backend/internal/supabase"
	"tour-video-backend/internal/vision"
)

// app holds the wired services shared by the server and the CLI commands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	redis  *redis.Client

	store      *database.Store
	runner     *services.Runner
	driver     *services.Driver
	reconciler *services.Reconciler
	processor  *services.Processor
	intake     *services.IntakeService
	status     *services.StatusService
	revisions  *services.RevisionService
	payments   *services.PaymentService
	admin      *services.AdminService
	reset      *auth.ResetService
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	db, err := database.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	store := database.NewStore(db)

	a := &app{cfg: cfg, logger: logger, db: db, store: store}

	var (
		objects services.ObjectStore
		events  services.EventPublisher
	)
	if cfg.StorageEnabled() {
		storageClient, err := supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		objects = storageClient

		supabaseClient, err := supabase.NewClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("create supabase client: %w", err)
		}
		events = supabase.NewRealtimeClient(supabaseClient.Supabase, cfg.SupabaseEventsTable)
	} else {
		logger.Warn("object storage not configured, videos keep their provider URLs")
	}

	var locker services.JobLocker
	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		locker = services.NewRedisLocker(a.redis)
	}

	mode := services.ModeLive
	if cfg.RunwayMock {
		mode = services.ModeMock
	}
	runwayClient := runway.NewClient(cfg.RunwayBaseURL, cfg.RunwayAPIKey)
	if mode == services.ModeLive && !runwayClient.HasAPIKey() {
		logger.Warn("RUNWAY_API_KEY not set, every generation will fail")
	}

	deriver := vision.NewDeriver(vision.Config{
		APIKey:       cfg.OpenAIAPIKey,
		BaseURL:      cfg.OpenAIBaseURL,
		Model:        cfg.OpenAIModel,
		ImproveModel: cfg.OpenAIImproveModel,
		Logger:       logger,
	})

	archiver := services.NewArchiver(services.ArchiverConfig{
		Storage:    objects,
		Store:      store,
		RootFolder: cfg.StorageRootFolder,
		Attempts:   cfg.ArchiveAttempts,
		Logger:     logger,
	})

	a.runner = services.NewRunner(logger)
	a.driver = services.NewDriver(services.DriverConfig{
		API:          runwayClient,
		Mode:         mode,
		Model:        cfg.RunwayModel,
		Duration:     cfg.RunwayDuration,
		PollInterval: cfg.RunwayPollInterval,
		WaitTimeout:  cfg.RunwayWaitTimeout,
		Logger:       logger,
	})
	a.reconciler = services.NewReconciler(services.ReconcilerConfig{
		Store:    store,
		Archiver: archiver,
		API:      runwayClient,
		Mode:     mode,
		Events:   events,
		Locker:   locker,
		Logger:   logger,
	})
	a.processor = services.NewProcessor(services.ProcessorConfig{
		Store:       store,
		Deriver:     deriver,
		Driver:      a.driver,
		Reconciler:  a.reconciler,
		Events:      events,
		Concurrency: cfg.PipelineConcurrency,
		Logger:      logger,
	})
	a.intake = services.NewIntakeService(services.IntakeConfig{
		Store:     store,
		Processor: a.processor,
		Runner:    a.runner,
		Events:    events,
		Logger:    logger,
	})
	a.status = services.NewStatusService(store)
	a.revisions = services.NewRevisionService(services.RevisionConfig{
		Store:      store,
		Deriver:    deriver,
		Driver:     a.driver,
		Reconciler: a.reconciler,
		Logger:     logger,
	})
	a.payments = services.NewPaymentService(services.PaymentConfig{
		Store:     store,
		Processor: a.processor,
		Runner:    a.runner,
		Logger:    logger,
	})
	a.admin = services.NewAdminService(store, logger)
	a.reset = auth.NewResetService(store, auth.NewTokenStore(db, cfg.ResetTokenTTL), nil, cfg.ResetLinkBase, logger)

	configureSwagger(cfg.BaseURL)
	return a, nil
}

// configureSwagger points the generated docs at the public base URL.
func configureSwagger(baseURL string) {
	if baseURL == "" {
		return
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return
	}
	docs.SwaggerInfo.Host = u.Host
	if u.Scheme == "https" {
		docs.SwaggerInfo.Schemes = []string{"https", "http"}
	} else {
		docs.SwaggerInfo.Schemes = []string{"http", "https"}
	}
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.logger.Sync()
}
