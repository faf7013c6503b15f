package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/SamiTelo/API-Football/internal/metrics"
	"github.com/SamiTelo/API-Football/internal/ratelimit"
)

type Limiter interface {
	Allow(ctx context.Context, rule ratelimit.Rule, key string) (ratelimit.Result, error)
}

// RateLimit throttles by client address. Limiter failures let the request through.
func RateLimit(limiter Limiter, rule ratelimit.Rule, m *metrics.Metrics, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		ip := c.ClientIP()
		res, err := limiter.Allow(c.Request.Context(), rule, ip)
		if err != nil {
			log.Error().Err(err).Str("scope", rule.Scope).Str("ip", ip).Msg("rate limiter unavailable")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if !res.Allowed {
			m.RateLimited(rule.Scope)
			log.Warn().Str("scope", rule.Scope).Str("ip", ip).Msg("rate limit exceeded")
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "too_many_requests",
				"message": "Trop de requêtes",
			})
			return
		}

		c.Next()
	}
}
