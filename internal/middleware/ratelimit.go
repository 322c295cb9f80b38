package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/civicsafe/api/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateChecker is satisfied by *ratelimit.Limiter.
type RateChecker interface {
	Check(ctx context.Context, clientID, action string) (*ratelimit.CheckResult, error)
}

// RateLimitMiddleware limits action per caller. Authenticated callers are
// keyed by user id, anonymous ones by client IP. Limiter failures let the
// request through.
func RateLimitMiddleware(limiter RateChecker, action string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		clientID := "ip:" + c.ClientIP()
		if id := CurrentIdentity(c); id != nil {
			clientID = "user:" + strconv.FormatInt(id.ID, 10)
		}

		result, err := limiter.Check(c.Request.Context(), clientID, action)
		if err != nil {
			logger.Warn("rate limit check failed", zap.String("action", action), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			rateLimitedTotal.WithLabelValues(action).Inc()
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, please try again later"})
			c.Abort()
			return
		}
		c.Next()
	}
}
