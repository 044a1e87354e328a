package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ZanzyTHEbar/symptom-checker/internal/classifier"
	"github.com/ZanzyTHEbar/symptom-checker/internal/config"
	"github.com/ZanzyTHEbar/symptom-checker/internal/features"
	"github.com/ZanzyTHEbar/symptom-checker/internal/frontend"
	"github.com/ZanzyTHEbar/symptom-checker/internal/middleware"
	"github.com/ZanzyTHEbar/symptom-checker/internal/monitoring"
	"github.com/ZanzyTHEbar/symptom-checker/internal/prediction"
	"github.com/ZanzyTHEbar/symptom-checker/internal/questionnaire"
	"github.com/ZanzyTHEbar/symptom-checker/internal/ratelimit"
	"github.com/ZanzyTHEbar/symptom-checker/internal/resilience"
	"github.com/ZanzyTHEbar/symptom-checker/internal/security"
	"github.com/ZanzyTHEbar/symptom-checker/internal/session"
)

const purgeInterval = time.Minute

// app holds every long-lived component the router needs
type app struct {
	cfg         *config.Config
	metrics     *monitoring.Metrics
	logger      *monitoring.Logger
	predictor   *prediction.Service
	manager     *session.Manager
	sessions    session.Store
	redis       *ratelimit.RedisClient
	limiter     *ratelimit.RateLimiter
	security    *security.Middleware
	compression *middleware.CompressionMiddleware
	pages       *frontend.Pages

	// breaker is nil when the model is loaded from disk
	breaker *resilience.Breaker
}

// newApp loads the model and wires the services described by cfg.
// Background purging stops when ctx is done.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{
		cfg:     cfg,
		metrics: monitoring.NewMetrics(),
		logger:  monitoring.NewLogger(cfg.Log.Level),
	}

	model, err := a.loadModel(ctx)
	if err != nil {
		return nil, err
	}

	version := cfg.Model.Version
	if version == "" {
		version = "local"
		if cfg.Model.Remote.BaseURL != "" {
			version = "remote"
		}
	}
	a.predictor = prediction.NewService(features.NewDefaultEncoder(), model, a.metrics, a.logger, prediction.Options{
		CacheTTL:     cfg.Cache.PredictionTTL,
		CacheSize:    cfg.Cache.PredictionSize,
		ModelVersion: version,
	})
	if memo := a.predictor.Cache(); memo != nil {
		go memo.Run(ctx, purgeInterval)
	}

	a.redis, err = ratelimit.NewRedisClient(ctx, cfg.Redis.URL)
	if err != nil {
		if cfg.Session.Backend == "redis" {
			return nil, fmt.Errorf("redis session backend unavailable: %w", err)
		}
		slog.Warn("Redis unavailable, rate limits fall back to process memory", "error", err)
	}

	switch cfg.Session.Backend {
	case "redis":
		a.sessions = session.NewRedisStore(a.redis.GetClient(), cfg.Session.TTL)
	default:
		store := session.NewMemoryStore(cfg.Session.TTL, cfg.Session.MaxSessions)
		go store.Run(ctx, purgeInterval)
		a.sessions = store
	}

	flow := questionnaire.NewFlow(questionnaire.DefaultQuestions())
	a.manager = session.NewManager(flow, a.sessions, a.predictor, a.metrics, a.logger)

	limits := ratelimit.DefaultConfig()
	limits.RequestsPerMinute = cfg.RateLimit.RequestsPerMinute
	limits.Burst = cfg.RateLimit.Burst
	limits.AnswersPerMinute = cfg.RateLimit.AnswersPerMinute
	a.limiter = ratelimit.NewRateLimiter(a.redis, limits, a.metrics)

	sec := security.DefaultConfig()
	sec.MaxInputLength = questionnaire.MaxTextLength
	sec.MaxBodyBytes = cfg.Server.MaxBodyBytes
	sec.AllowedOrigins = cfg.Server.AllowedOrigins
	sec.RequestTimeout = cfg.Server.RequestTimeout
	sec.EnableHSTS = cfg.UsesTLS() || cfg.IsProduction()
	a.security = security.NewMiddleware(sec)

	a.compression = middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig())

	a.pages, err = frontend.LoadPages(frontend.TemplateFS())
	if err != nil {
		return nil, fmt.Errorf("failed to load page templates: %w", err)
	}

	return a, nil
}

func (a *app) loadModel(ctx context.Context) (classifier.Classifier, error) {
	remote := a.cfg.Model.Remote
	if remote.BaseURL == "" {
		model, err := classifier.LoadFile(a.cfg.Model.Path)
		if err != nil {
			return nil, err
		}
		slog.Info("Loaded model artifact", "path", a.cfg.Model.Path, "columns", len(model.Columns()))
		return model, nil
	}

	model, err := classifier.NewRemote(ctx, remote)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to model server: %w", err)
	}
	a.breaker = model.Breaker()
	a.breaker.OnStateChange(func(name string, from, to resilience.State) {
		a.metrics.RecordBreakerState(name, to.String(), int(to))
		a.logger.ExternalAPILogger(name, "breaker_"+to.String(), to == resilience.StateClosed, "from", from.String())
	})
	slog.Info("Connected to model server", "url", remote.BaseURL, "columns", len(model.Columns()))
	return model, nil
}

// Close releases connections held by the app
func (a *app) Close() {
	a.limiter.Close()
	if err := a.redis.Close(); err != nil {
		slog.Error("Failed to close redis client", "error", err)
	}
}
