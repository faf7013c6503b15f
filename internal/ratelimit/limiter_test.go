package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLimiter(client), mr
}

func TestAllowBlocksAfterLimit(t *testing.T) {
	limiter, _ := newLimiter(t)
	rule := Rule{Scope: "login", Limit: 5, Window: time.Minute}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := limiter.Allow(ctx, rule, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "hit %d", i+1)
		assert.Equal(t, 4-i, res.Remaining)
	}

	res, err := limiter.Allow(ctx, rule, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))

	other, err := limiter.Allow(ctx, rule, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestAllowResetsAfterWindow(t *testing.T) {
	limiter, mr := newLimiter(t)
	rule := Rule{Scope: "forgot", Limit: 1, Window: 5 * time.Minute}
	ctx := context.Background()

	res, err := limiter.Allow(ctx, rule, "ip")
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = limiter.Allow(ctx, rule, "ip")
	require.NoError(t, err)
	require.False(t, res.Allowed)

	mr.FastForward(5 * time.Minute)

	res, err = limiter.Allow(ctx, rule, "ip")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestAllowWithoutLimitAlwaysPasses(t *testing.T) {
	limiter, mr := newLimiter(t)
	res, err := limiter.Allow(context.Background(), Rule{Scope: "off"}, "ip")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.False(t, mr.Exists("rl:off:ip"))
}

func TestAllowReportsBackendErrors(t *testing.T) {
	limiter, mr := newLimiter(t)
	mr.Close()

	_, err := limiter.Allow(context.Background(), Rule{Scope: "login", Limit: 1, Window: time.Minute}, "ip")
	assert.Error(t, err)
}
