package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SamiTelo/API-Football/internal/config"
)

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	client, err := NewRedisClient(ctx, config.RedisConfig{Addr: mr.Addr(), PoolSize: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	probe := Ping(client)
	assert.NoError(t, probe(ctx))

	mr.Close()
	assert.Error(t, probe(ctx))
}

func TestNewRedisClientFailsFast(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient(context.Background(), config.RedisConfig{Addr: addr, DialTimeout: 200 * time.Millisecond})
	assert.Error(t, err)

	_, err = NewRedisClient(context.Background(), config.RedisConfig{})
	assert.Error(t, err)
}
