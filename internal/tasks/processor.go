package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/SamiTelo/API-Football/internal/jobs"
	"github.com/SamiTelo/API-Football/internal/metrics"
)

type SignupAttemptPurger interface {
	PurgeBefore(ctx context.Context, before time.Time) (int64, error)
}

type TwoFactorPurger interface {
	PurgeExpiredTwoFactor(ctx context.Context, now time.Time) (int64, error)
}

// Processor runs maintenance tasks read from the stream.
type Processor struct {
	attempts     SignupAttemptPurger
	twoFactor    TwoFactorPurger
	signupWindow time.Duration
	metrics      *metrics.Metrics
	logger       zerolog.Logger
	now          func() time.Time
}

func NewProcessor(attempts SignupAttemptPurger, twoFactor TwoFactorPurger, signupWindow time.Duration, m *metrics.Metrics, logger zerolog.Logger) *Processor {
	return &Processor{
		attempts:     attempts,
		twoFactor:    twoFactor,
		signupWindow: signupWindow,
		metrics:      m,
		logger:       logger,
		now:          time.Now,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	taskType, _ := msg.Values["type"].(string)

	var (
		removed int64
		err     error
	)
	switch taskType {
	case jobs.TaskPurgeSignupAttempts:
		removed, err = p.attempts.PurgeBefore(ctx, p.now().Add(-p.signupWindow))
	case jobs.TaskPurgeTwoFactor:
		removed, err = p.twoFactor.PurgeExpiredTwoFactor(ctx, p.now())
	default:
		p.logger.Warn().Str("type", taskType).Str("message_id", msg.ID).Msg("unknown task type")
		return nil
	}

	p.metrics.MaintenanceTask(taskType, err)
	if err != nil {
		return fmt.Errorf("%s: %w", taskType, err)
	}

	p.logger.Info().Str("type", taskType).Int64("removed", removed).Msg("maintenance task done")
	return nil
}
