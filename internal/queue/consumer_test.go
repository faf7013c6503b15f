package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu   sync.Mutex
	seen []string
	fail bool
}

func (h *recordingHandler) Handle(_ context.Context, msg redis.XMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail {
		return errors.New("boom")
	}
	h.seen = append(h.seen, msg.Values["type"].(string))
	return nil
}

func newTestConsumer(t *testing.T, handler MessageHandler) (*Consumer, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewConsumer(client, "auth:maintenance", "auth-maintenance", "worker-1", time.Second, zerolog.Nop(), handler)
	c.block = 10 * time.Millisecond
	require.NoError(t, c.EnsureGroup(context.Background()))
	return c, client
}

func TestPollHandlesAndAcks(t *testing.T) {
	ctx := context.Background()
	handler := &recordingHandler{}
	c, client := newTestConsumer(t, handler)

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: "auth:maintenance", Values: map[string]any{"type": "purge_two_factor"}}).Err())

	handled, err := c.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, handled)
	assert.Equal(t, []string{"purge_two_factor"}, handler.seen)

	pending, err := client.XPending(ctx, "auth:maintenance", "auth-maintenance").Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestPollLeavesFailedMessagesPending(t *testing.T) {
	ctx := context.Background()
	c, client := newTestConsumer(t, &recordingHandler{fail: true})

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: "auth:maintenance", Values: map[string]any{"type": "purge_two_factor"}}).Err())

	handled, err := c.Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, handled)

	pending, err := client.XPending(ctx, "auth:maintenance", "auth-maintenance").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)
}

func TestEnsureGroupIsIdempotent(t *testing.T) {
	c, _ := newTestConsumer(t, &recordingHandler{})
	assert.NoError(t, c.EnsureGroup(context.Background()))
}
