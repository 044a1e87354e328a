package ratelimit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/symptom-checker/internal/monitoring"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newFallbackLimiter(t *testing.T, config Config) (*RateLimiter, *monitoring.Metrics) {
	t.Helper()
	metrics := monitoring.NewMetrics()
	limiter := NewRateLimiter(&RedisClient{enabled: false}, config, metrics)
	t.Cleanup(limiter.Close)
	return limiter, metrics
}

func TestRateLimiterFallbackMode(t *testing.T) {
	limiter, metrics := newFallbackLimiter(t, DefaultConfig())

	ctx := context.Background()
	rateLimit := Rate{Limit: 5, Period: time.Minute}

	for i := 0; i < 5; i++ {
		result, err := limiter.Allow(ctx, "test:user:123", rateLimit)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "Request %d should be allowed", i+1)
		assert.Equal(t, 5, result.Limit)
	}

	result, err := limiter.Allow(ctx, "test:user:123", rateLimit)
	require.NoError(t, err)
	assert.False(t, result.Allowed, "6th request should be blocked")
	assert.Equal(t, 0, result.Remaining)
	assert.Greater(t, result.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, result.RetryAfter, 12*time.Second)

	assert.Equal(t, float64(6), testutil.ToFloat64(metrics.RateLimitFallback))
}

func TestRateLimiterBurst(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, DefaultConfig())

	ctx := context.Background()
	rateLimit := Rate{Limit: 60, Burst: 3, Period: time.Hour}

	allowed := 0
	for i := 0; i < 10; i++ {
		result, err := limiter.Allow(ctx, "test:burst", rateLimit)
		require.NoError(t, err)
		if result.Allowed {
			allowed++
		}
	}

	assert.Equal(t, 3, allowed)
}

func TestRateLimiterMultipleKeys(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, DefaultConfig())

	ctx := context.Background()
	rateLimit := Rate{Limit: 3, Period: time.Minute}

	for _, key := range []string{"user:1", "user:2", "user:3"} {
		for i := 0; i < 3; i++ {
			result, err := limiter.Allow(ctx, key, rateLimit)
			require.NoError(t, err)
			assert.True(t, result.Allowed, "Key %s request %d should be allowed", key, i+1)
		}

		result, err := limiter.Allow(ctx, key, rateLimit)
		require.NoError(t, err)
		assert.False(t, result.Allowed, "Key %s 4th request should be blocked", key)
	}
}

func TestRateLimiterInvalidRate(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, DefaultConfig())

	_, err := limiter.Allow(context.Background(), "k", Rate{Limit: 0, Period: time.Minute})
	assert.Error(t, err)

	_, err = limiter.Allow(context.Background(), "k", Rate{Limit: 1})
	assert.Error(t, err)
}

func TestRateLimiterCleanup(t *testing.T) {
	config := DefaultConfig()
	config.IdleTimeout = time.Minute
	limiter, _ := newFallbackLimiter(t, config)

	ctx := context.Background()
	rateLimit := Rate{Limit: 5, Period: time.Minute}
	for _, key := range []string{"a", "b", "c"} {
		_, err := limiter.Allow(ctx, key, rateLimit)
		require.NoError(t, err)
	}

	assert.Equal(t, 0, limiter.cleanup(time.Now()))
	assert.Equal(t, 3, limiter.cleanup(time.Now().Add(2*time.Minute)))
	assert.Equal(t, 0, limiter.GetStats()["fallback_limiters"])
}

func TestRateLimiterStats(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, DefaultConfig())

	_, _ = limiter.AllowIP(context.Background(), "10.0.0.1")

	stats := limiter.GetStats()
	assert.False(t, stats["redis_enabled"].(bool))
	assert.Equal(t, 1, stats["fallback_limiters"])

	statsConfig := stats["config"].(map[string]interface{})
	assert.Equal(t, 60, statsConfig["requests_per_minute"])
	assert.Equal(t, 30, statsConfig["answers_per_minute"])
}

func TestRateLimiterConcurrency(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, DefaultConfig())

	ctx := context.Background()
	rateLimit := Rate{Limit: 100, Period: time.Hour}

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				result, err := limiter.Allow(ctx, "test:concurrent", rateLimit)
				assert.NoError(t, err)
				if err == nil && result.Allowed {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, allowed)
}

func TestRateLimiterContextCancellation(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := limiter.Allow(ctx, "test:cancelled", Rate{Limit: 5, Period: time.Minute})
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRedisClient_Disabled(t *testing.T) {
	client, err := NewRedisClient(context.Background(), "")
	require.NoError(t, err)

	assert.False(t, client.IsEnabled())
	assert.Nil(t, client.GetClient())
	assert.Error(t, client.HealthCheck(context.Background()))
	assert.NoError(t, client.Close())
	assert.Equal(t, false, client.GetPoolStats()["enabled"])

	var nilClient *RedisClient
	assert.False(t, nilClient.IsEnabled())
}

func TestRedisClient_InvalidURL(t *testing.T) {
	client, err := NewRedisClient(context.Background(), "http://not-redis")
	assert.Error(t, err)
	assert.False(t, client.IsEnabled())
}

func TestRedisClient_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := NewRedisClient(ctx, "redis://127.0.0.1:1/0")
	assert.Error(t, err)
	assert.False(t, client.IsEnabled())
}

func TestIPRateLimitMiddleware(t *testing.T) {
	config := DefaultConfig()
	config.RequestsPerMinute = 2
	config.Burst = 2
	limiter, metrics := newFallbackLimiter(t, config)

	router := gin.New()
	router.Use(limiter.IPRateLimitMiddleware())
	router.GET("/api/questions", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/questions", nil)
		req.RemoteAddr = "192.0.2.10:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	first := send()
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, send().Code)

	blocked := send()
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(blocked.Body.Bytes(), &body))
	assert.Equal(t, "rate_limit", body["category"])

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RateLimitBlocks.WithLabelValues("ip")))
}

func TestSessionRateLimitMiddleware(t *testing.T) {
	config := DefaultConfig()
	config.AnswersPerMinute = 1
	limiter, _ := newFallbackLimiter(t, config)

	router := gin.New()
	router.POST("/api/sessions/:id/answers",
		limiter.SessionRateLimitMiddleware(func(c *gin.Context) string { return c.Param("id") }),
		func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(id string) int {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/answers", nil))
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("a"))
	assert.Equal(t, http.StatusTooManyRequests, send("a"))
	assert.Equal(t, http.StatusOK, send("b"), "sessions have separate budgets")
}

func TestSessionRateLimitMiddleware_NoKey(t *testing.T) {
	config := DefaultConfig()
	config.AnswersPerMinute = 1
	limiter, _ := newFallbackLimiter(t, config)

	router := gin.New()
	router.Use(limiter.SessionRateLimitMiddleware(func(c *gin.Context) string { return "" }))
	router.POST("/chat/answer", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/chat/answer", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRetrySeconds(t *testing.T) {
	assert.Equal(t, "1", retrySeconds(0))
	assert.Equal(t, "1", retrySeconds(200*time.Millisecond))
	assert.Equal(t, "2", retrySeconds(1500*time.Millisecond))
}

func TestHandleRateLimitStatus(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, DefaultConfig())

	router := gin.New()
	router.GET("/api/ratelimit", limiter.HandleRateLimitStatus())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ratelimit", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["redis_enabled"])
	limits := body["limits"].(map[string]interface{})
	assert.Equal(t, float64(60), limits["requests_per_minute"])
}
