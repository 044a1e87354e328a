package monitoring

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxResponseSamples = 1000

// Metrics holds the Prometheus collectors of one process plus the in-process
// counters reported by /health.
//
// Metrics:
//   - symptom_http_requests_total{method,route,status}
//   - symptom_http_request_duration_seconds{method,route}
//   - symptom_predictions_total{outcome,source}
//   - symptom_prediction_duration_seconds
//   - symptom_prediction_errors_total
//   - symptom_prediction_cache_total{result}
//   - symptom_sessions_total{flow,event}
//   - symptom_ratelimit_blocks_total{scope}
//   - symptom_ratelimit_fallback_total
//   - symptom_ratelimit_redis_errors_total
//   - symptom_breaker_state{name}
//   - symptom_breaker_transitions_total{name,to}
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	PredictionsTotal   *prometheus.CounterVec
	PredictionDuration prometheus.Histogram
	PredictionErrors   prometheus.Counter
	PredictionCache    *prometheus.CounterVec
	SessionsTotal      *prometheus.CounterVec
	RateLimitBlocks    *prometheus.CounterVec
	RateLimitFallback  prometheus.Counter
	RateLimitRedisErr  prometheus.Counter
	BreakerState       *prometheus.GaugeVec
	BreakerTransitions *prometheus.CounterVec

	requestCount int64
	errorCount   int64
	startTime    time.Time

	responseTimes      []time.Duration
	responseTimesMutex sync.Mutex
}

// NewMetrics creates metrics on a fresh registry that also carries the Go and process collectors
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "symptom_http_requests_total",
				Help: "Total HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "symptom_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		PredictionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "symptom_predictions_total",
				Help: "Predictions served by outcome and source (model or cache)",
			},
			[]string{"outcome", "source"},
		),
		PredictionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "symptom_prediction_duration_seconds",
				Help:    "Classifier evaluation time in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
		),
		PredictionErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "symptom_prediction_errors_total",
				Help: "Classifier calls that failed",
			},
		),
		PredictionCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "symptom_prediction_cache_total",
				Help: "Prediction cache lookups by result (hit or miss)",
			},
			[]string{"result"},
		),
		SessionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "symptom_sessions_total",
				Help: "Questionnaire session events by flow",
			},
			[]string{"flow", "event"},
		),
		RateLimitBlocks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "symptom_ratelimit_blocks_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"scope"},
		),
		RateLimitFallback: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "symptom_ratelimit_fallback_total",
				Help: "Rate limit decisions taken by the in-memory fallback",
			},
		),
		RateLimitRedisErr: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "symptom_ratelimit_redis_errors_total",
				Help: "Redis errors seen by the rate limiter",
			},
		),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "symptom_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 open, 2 half open)",
			},
			[]string{"name"},
		),
		BreakerTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "symptom_breaker_transitions_total",
				Help: "Circuit breaker transitions by target state",
			},
			[]string{"name", "to"},
		),
		startTime:     time.Now(),
		responseTimes: make([]time.Duration, 0, maxResponseSamples),
	}
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordRequest records one finished HTTP request
func (m *Metrics) RecordRequest(method, route string, statusCode int, duration time.Duration) {
	atomic.AddInt64(&m.requestCount, 1)
	if statusCode >= 400 {
		atomic.AddInt64(&m.errorCount, 1)
	}

	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())

	m.responseTimesMutex.Lock()
	if len(m.responseTimes) >= maxResponseSamples {
		copy(m.responseTimes, m.responseTimes[1:])
		m.responseTimes = m.responseTimes[:maxResponseSamples-1]
	}
	m.responseTimes = append(m.responseTimes, duration)
	m.responseTimesMutex.Unlock()
}

// RecordPrediction records a served prediction
func (m *Metrics) RecordPrediction(outcome string, cacheHit bool, duration time.Duration) {
	source := "model"
	if cacheHit {
		source = "cache"
		m.PredictionCache.WithLabelValues("hit").Inc()
	} else {
		m.PredictionCache.WithLabelValues("miss").Inc()
		m.PredictionDuration.Observe(duration.Seconds())
	}
	m.PredictionsTotal.WithLabelValues(outcome, source).Inc()
}

// IncrementPredictionError counts a failed classifier call
func (m *Metrics) IncrementPredictionError() {
	m.PredictionErrors.Inc()
}

// RecordSession counts a session event (started, completed, restarted, deleted)
func (m *Metrics) RecordSession(flow, event string) {
	m.SessionsTotal.WithLabelValues(flow, event).Inc()
}

// IncrementRateLimitBlock counts a rejected request for scope (ip or session)
func (m *Metrics) IncrementRateLimitBlock(scope string) {
	m.RateLimitBlocks.WithLabelValues(scope).Inc()
}

// IncrementRateLimitFallback counts a decision made without Redis
func (m *Metrics) IncrementRateLimitFallback() {
	m.RateLimitFallback.Inc()
}

// IncrementRateLimitRedisError counts a Redis failure in the limiter
func (m *Metrics) IncrementRateLimitRedisError() {
	m.RateLimitRedisErr.Inc()
}

// RecordBreakerState records a circuit breaker transition; state is 0 closed, 1 open, 2 half open
func (m *Metrics) RecordBreakerState(name, to string, state int) {
	m.BreakerState.WithLabelValues(name).Set(float64(state))
	m.BreakerTransitions.WithLabelValues(name, to).Inc()
}

// GetPercentileResponseTime returns the given percentile over the recent request window
func (m *Metrics) GetPercentileResponseTime(percentile float64) time.Duration {
	m.responseTimesMutex.Lock()
	samples := make([]time.Duration, len(m.responseTimes))
	copy(samples, m.responseTimes)
	m.responseTimesMutex.Unlock()

	if len(samples) == 0 {
		return 0
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	index := int(float64(len(samples)-1) * percentile / 100)
	if index < 0 {
		index = 0
	}
	if index >= len(samples) {
		index = len(samples) - 1
	}
	return samples[index]
}

// GetStats returns the summary reported by /health
func (m *Metrics) GetStats() map[string]interface{} {
	requests := atomic.LoadInt64(&m.requestCount)
	errors := atomic.LoadInt64(&m.errorCount)

	errorRate := 0.0
	if requests > 0 {
		errorRate = float64(errors) / float64(requests) * 100
	}

	return map[string]interface{}{
		"uptime_seconds":  time.Since(m.startTime).Seconds(),
		"request_count":   requests,
		"error_count":     errors,
		"error_rate_pct":  errorRate,
		"p50_response_ms": m.GetPercentileResponseTime(50).Milliseconds(),
		"p95_response_ms": m.GetPercentileResponseTime(95).Milliseconds(),
		"p99_response_ms": m.GetPercentileResponseTime(99).Milliseconds(),
	}
}
