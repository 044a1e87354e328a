package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ZanzyTHEbar/symptom-checker/internal/errors"
)

// KeyFunc extracts the identity a budget is charged to. An empty key skips the check.
type KeyFunc func(c *gin.Context) string

// IPRateLimitMiddleware limits every request per client address
func (rl *RateLimiter) IPRateLimitMiddleware() gin.HandlerFunc {
	return rl.middleware("ip", rl.IPRate(), func(c *gin.Context) string {
		return "ratelimit:ip:" + c.ClientIP()
	})
}

// SessionRateLimitMiddleware limits answer submissions per session
func (rl *RateLimiter) SessionRateLimitMiddleware(key KeyFunc) gin.HandlerFunc {
	return rl.middleware("session", rl.AnswerRate(), func(c *gin.Context) string {
		id := key(c)
		if id == "" {
			return ""
		}
		return "ratelimit:session:" + id
	})
}

func (rl *RateLimiter) middleware(scope string, limit Rate, key KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		k := key(c)
		if k == "" {
			c.Next()
			return
		}

		result, err := rl.Allow(c.Request.Context(), k, limit)
		if err != nil {
			// fail open
			slog.Error("Rate limit check failed", "scope", scope, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitBlock(scope)
			}

			retryAfter := retrySeconds(result.RetryAfter)
			c.Header("Retry-After", retryAfter)

			appErr := apperrors.NewRateLimitError(retryAfter)
			apperrors.LogError(c, appErr)
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.Response())
			return
		}

		c.Next()
	}
}

// retrySeconds rounds up so clients never retry early
func retrySeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// HandleRateLimitStatus reports the caller's budget without spending it
func (rl *RateLimiter) HandleRateLimitStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ip": c.ClientIP(),
			"limits": gin.H{
				"requests_per_minute": rl.config.RequestsPerMinute,
				"burst":               rl.config.Burst,
				"answers_per_minute":  rl.config.AnswersPerMinute,
			},
			"redis_enabled": rl.redisClient.IsEnabled(),
			"timestamp":     time.Now().Format(time.RFC3339),
		})
	}
}
