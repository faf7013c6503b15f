package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rule allows Limit hits per Window for one scope.
type Rule struct {
	Scope  string
	Limit  int
	Window time.Duration
}

type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts hits in fixed redis windows keyed rl:<scope>:<key>.
type Limiter struct {
	client *redis.Client
}

func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{client: client}
}

func (l *Limiter) Allow(ctx context.Context, rule Rule, key string) (Result, error) {
	if rule.Limit <= 0 || rule.Window <= 0 {
		return Result{Allowed: true}, nil
	}

	redisKey := fmt.Sprintf("rl:%s:%s", rule.Scope, key)

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		ttl = pipe.PTTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("rate limit %s: %w", rule.Scope, err)
	}

	count := int(incr.Val())
	retryAfter := ttl.Val()
	if retryAfter < 0 {
		// first hit of the window, or a key left without expiry
		if err := l.client.PExpire(ctx, redisKey, rule.Window).Err(); err != nil {
			return Result{}, fmt.Errorf("rate limit %s: %w", rule.Scope, err)
		}
		retryAfter = rule.Window
	}

	if count > rule.Limit {
		return Result{Allowed: false, RetryAfter: retryAfter}, nil
	}
	return Result{Allowed: true, Remaining: rule.Limit - count, RetryAfter: retryAfter}, nil
}
