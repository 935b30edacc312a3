package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Counter counts hits per key within a window.
type Counter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

type RateLimiter struct {
	counter Counter
	log     *zap.Logger
}

// NewRateLimiter returns a limiter backed by counter. A nil counter disables
// limiting.
func NewRateLimiter(counter Counter, log *zap.Logger) *RateLimiter {
	return &RateLimiter{counter: counter, log: log}
}

// Limit allows limit requests per client IP in each window. Requests pass
// through when the counter is unavailable.
func (rl *RateLimiter) Limit(keySuffix string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.counter == nil {
			c.Next()
			return
		}
		key := fmt.Sprintf("%s:%s", keySuffix, c.ClientIP())

		count, ttl, err := rl.counter.Hit(c.Request.Context(), key, window)
		if err != nil {
			rl.log.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		if count > int64(limit) {
			c.Header("Retry-After", fmt.Sprintf("%.0f", math.Ceil(ttl.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests",
				"retry_after": fmt.Sprintf("%.0f minutes", math.Ceil(ttl.Minutes())),
			})
			return
		}
		c.Next()
	}
}
