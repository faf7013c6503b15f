package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/SamiTelo/API-Football/internal/cache"
	"github.com/SamiTelo/API-Football/internal/config"
	"github.com/SamiTelo/API-Football/internal/database"
	"github.com/SamiTelo/API-Football/internal/log"
	"github.com/SamiTelo/API-Football/internal/metrics"
	"github.com/SamiTelo/API-Football/internal/queue"
	"github.com/SamiTelo/API-Football/internal/repository"
	"github.com/SamiTelo/API-Football/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.LogLevel, "worker")

	if err := cfg.ValidateWorker(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	m := metrics.New()
	if cfg.Worker.MetricsAddr != "" {
		metricsServer := &http.Server{Addr: cfg.Worker.MetricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
		defer metricsServer.Close()
	}

	processor := tasks.NewProcessor(
		repository.NewSignupAttemptRepository(dbPool),
		repository.NewUserRepository(dbPool),
		cfg.Security.SignupWindow,
		m,
		logger,
	)
	consumer := queue.NewConsumer(
		client,
		cfg.Jobs.Stream,
		cfg.Worker.Group,
		cfg.Worker.Consumer,
		cfg.Worker.ClaimInterval,
		logger,
		processor,
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("consumer stopped unexpectedly")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("consumer did not stop in time")
	}
}
