package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/SamiTelo/API-Football/internal/cache"
	"github.com/SamiTelo/API-Football/internal/config"
	"github.com/SamiTelo/API-Football/internal/database"
	"github.com/SamiTelo/API-Football/internal/handlers"
	"github.com/SamiTelo/API-Football/internal/jobs"
	"github.com/SamiTelo/API-Football/internal/log"
	"github.com/SamiTelo/API-Football/internal/mail"
	"github.com/SamiTelo/API-Football/internal/metrics"
	"github.com/SamiTelo/API-Football/internal/ratelimit"
	"github.com/SamiTelo/API-Football/internal/repository"
	"github.com/SamiTelo/API-Football/internal/security"
	"github.com/SamiTelo/API-Football/internal/server"
	"github.com/SamiTelo/API-Football/internal/service"
	"github.com/SamiTelo/API-Football/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.LogLevel, "api")

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	if cfg.Postgres.AutoMigrate {
		if err := database.Migrate(ctx, dbPool); err != nil {
			logger.Fatal().Err(err).Msg("migrations failed")
		}
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure bucket failed")
	}

	m := metrics.New()

	users := repository.NewUserRepository(dbPool)
	roles := repository.NewRoleRepository(dbPool)
	attempts := repository.NewSignupAttemptRepository(dbPool)
	images := repository.NewImageRepository(dbPool)

	signer := security.NewTokenSigner(map[security.Purpose]security.Key{
		security.PurposeAccess:  {Secret: cfg.Security.Access.Secret, TTL: cfg.Security.Access.TTL},
		security.PurposeRefresh: {Secret: cfg.Security.Refresh.Secret, TTL: cfg.Security.Refresh.TTL},
		security.PurposeVerify:  {Secret: cfg.Security.Verify.Secret, TTL: cfg.Security.Verify.TTL},
		security.PurposeReset:   {Secret: cfg.Security.Reset.Secret, TTL: cfg.Security.Reset.TTL},
	})

	mailer := mail.NewMailer(mail.NewSMTPSender(cfg.Mail), cfg.FrontendURL, logger)

	authService := service.NewAuthService(
		users,
		roles,
		attempts,
		security.NewPasswordHasher(security.DefaultArgon2Params),
		signer,
		mailer,
		service.NewAuthConfig(cfg.Security),
		logger,
		service.WithMetrics(m),
	)
	uploadService := service.NewUploadService(images, objectStore, service.UploadConfig{
		MaxSize:    cfg.Storage.MaxUploadSize,
		PresignTTL: cfg.Storage.PresignTTL,
	}, logger)

	created, err := authService.EnsureSuperAdmin(ctx, service.BootstrapInput{
		Email:     cfg.Bootstrap.SuperAdminEmail,
		Password:  cfg.Bootstrap.SuperAdminPassword,
		FirstName: cfg.Bootstrap.SuperAdminFirstName,
		LastName:  cfg.Bootstrap.SuperAdminLastName,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("superadmin bootstrap failed")
	}
	if created {
		logger.Info().Msg("initial superadmin created")
	}

	limiter := ratelimit.NewLimiter(redisClient)

	handlerSet := handlers.NewHandlerSet(handlers.Dependencies{
		Log:     logger,
		Config:  cfg,
		Auth:    authService,
		Upload:  uploadService,
		Tokens:  signer,
		Users:   users,
		Limiter: limiter,
		Metrics: m,
		Checks: []handlers.HealthCheck{
			{Name: "database", Ping: dbPool.Ping},
			{Name: "cache", Ping: cache.Ping(redisClient)},
			{Name: "storage", Ping: objectStore.Ping},
		},
	})

	httpServer, err := server.NewHTTPServer(cfg, logger, handlerSet, server.Options{
		Limiter: limiter,
		Metrics: m,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("http server init failed")
	}

	scheduler := jobs.NewScheduler(redisClient, cfg.Jobs, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop(shutdownCtx)

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
