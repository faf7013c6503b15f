package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SamiTelo/API-Football/internal/jobs"
	"github.com/SamiTelo/API-Football/internal/metrics"
)

type fakePurger struct {
	before time.Time
	now    time.Time
	err    error
}

func (f *fakePurger) PurgeBefore(_ context.Context, before time.Time) (int64, error) {
	f.before = before
	return 2, f.err
}

func (f *fakePurger) PurgeExpiredTwoFactor(_ context.Context, now time.Time) (int64, error) {
	f.now = now
	return 1, f.err
}

func newProcessor(p *fakePurger, now time.Time) *Processor {
	proc := NewProcessor(p, p, 24*time.Hour, metrics.New(), zerolog.Nop())
	proc.now = func() time.Time { return now }
	return proc
}

func TestHandleDispatchesByType(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	purger := &fakePurger{}
	proc := newProcessor(purger, now)

	require.NoError(t, proc.Handle(context.Background(), redis.XMessage{ID: "1-0", Values: map[string]any{"type": jobs.TaskPurgeSignupAttempts}}))
	assert.Equal(t, now.Add(-24*time.Hour), purger.before)

	require.NoError(t, proc.Handle(context.Background(), redis.XMessage{ID: "2-0", Values: map[string]any{"type": jobs.TaskPurgeTwoFactor}}))
	assert.Equal(t, now, purger.now)
}

func TestHandleUnknownTypeIsAcked(t *testing.T) {
	proc := newProcessor(&fakePurger{}, time.Now())
	assert.NoError(t, proc.Handle(context.Background(), redis.XMessage{ID: "1-0", Values: map[string]any{"type": "reindex"}}))
}

func TestHandleReturnsStoreError(t *testing.T) {
	proc := newProcessor(&fakePurger{err: errors.New("db down")}, time.Now())
	err := proc.Handle(context.Background(), redis.XMessage{ID: "1-0", Values: map[string]any{"type": jobs.TaskPurgeTwoFactor}})
	assert.ErrorContains(t, err, "db down")
}
