package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/SamiTelo/API-Football/internal/config"
)

const (
	TaskPurgeSignupAttempts = "purge_signup_attempts"
	TaskPurgeTwoFactor      = "purge_two_factor"
)

// Scheduler enqueues maintenance tasks on the redis stream read by the worker.
type Scheduler struct {
	cron  *cron.Cron
	queue *redis.Client
	cfg   config.JobsConfig
	log   zerolog.Logger
	now   func() time.Time
}

func NewScheduler(queue *redis.Client, cfg config.JobsConfig, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:  cron.New(cron.WithSeconds()),
		queue: queue,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
	}
}

func (s *Scheduler) Start() error {
	if s.queue == nil || !s.cfg.Enabled {
		return nil
	}

	if _, err := s.cron.AddFunc(s.cfg.PurgeSignupSpec, func() { s.enqueueLogged(TaskPurgeSignupAttempts) }); err != nil {
		return fmt.Errorf("schedule %s: %w", TaskPurgeSignupAttempts, err)
	}
	if _, err := s.cron.AddFunc(s.cfg.PurgeTwoFactorSpec, func() { s.enqueueLogged(TaskPurgeTwoFactor) }); err != nil {
		return fmt.Errorf("schedule %s: %w", TaskPurgeTwoFactor, err)
	}

	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) enqueueLogged(taskType string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.Enqueue(ctx, taskType); err != nil {
		s.log.Error().Err(err).Str("type", taskType).Msg("enqueue maintenance task failed")
		return
	}
	s.log.Debug().Str("type", taskType).Msg("maintenance task enqueued")
}

// Enqueue appends a task of taskType to the maintenance stream.
func (s *Scheduler) Enqueue(ctx context.Context, taskType string) error {
	if s.queue == nil {
		return nil
	}
	_, err := s.queue.XAdd(ctx, &redis.XAddArgs{
		Stream: s.cfg.Stream,
		Values: map[string]any{
			"type":        taskType,
			"requestedAt": s.now().UTC().Format(time.RFC3339),
		},
	}).Result()
	return err
}
