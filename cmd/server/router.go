package main

import (
	"context"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/ZanzyTHEbar/symptom-checker/internal/api"
	"github.com/ZanzyTHEbar/symptom-checker/internal/errors"
	"github.com/ZanzyTHEbar/symptom-checker/internal/frontend"
	"github.com/ZanzyTHEbar/symptom-checker/internal/monitoring"
	"github.com/ZanzyTHEbar/symptom-checker/internal/resilience"

	_ "github.com/ZanzyTHEbar/symptom-checker/docs"
)

const version = "1.0.0"

func setupRouter(a *app) *gin.Engine {
	r := gin.New()

	// monitoring first so every request is counted
	r.Use(monitoring.RequestIDMiddleware())
	r.Use(monitoring.MonitoringMiddleware(a.metrics, a.logger))
	r.Use(monitoring.SecurityMonitoringMiddleware(a.logger, a.cfg.Server.MaxBodyBytes))

	r.Use(errors.ErrorHandler())
	r.Use(a.compression.Handler())
	r.Use(errors.RecoveryHandler())

	r.Use(a.security.Headers())
	r.Use(a.security.LimitBody)
	r.Use(a.security.RequestTimeout)
	r.Use(a.security.ValidateContentType)
	if a.cfg.RateLimit.Enabled {
		r.Use(a.limiter.IPRateLimitMiddleware())
	}

	r.GET("/health", a.health)
	r.GET("/metrics", gin.WrapH(a.metrics.Handler()))

	var answerLimit, pageAnswerLimit []gin.HandlerFunc
	pages := frontend.NewHandler(a.manager, a.pages, frontend.CookieConfig{
		Name:   a.cfg.Session.CookieName,
		Secure: a.cfg.Session.CookieSecure,
		MaxAge: a.cfg.Session.TTL,
	}, a.security.CleanText)
	if a.cfg.RateLimit.Enabled {
		answerLimit = append(answerLimit, a.limiter.SessionRateLimitMiddleware(func(c *gin.Context) string {
			return c.Param("id")
		}))
		pageAnswerLimit = append(pageAnswerLimit, a.limiter.SessionRateLimitMiddleware(pages.SessionID))
	}

	apiGroup := r.Group("/api", a.security.CORS())
	api.NewHandler(a.predictor, a.manager, a.security.CleanText).Register(apiGroup, answerLimit...)
	apiGroup.GET("/ratelimit", a.limiter.HandleRateLimitStatus())

	site := r.Group("", a.security.CSP())
	pages.Register(site, pageAnswerLimit...)

	if a.cfg.Server.Swagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if a.cfg.Server.Pprof {
		debug := r.Group("/debug/pprof")
		debug.GET("/", gin.WrapF(pprof.Index))
		debug.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		debug.GET("/profile", gin.WrapF(pprof.Profile))
		debug.GET("/symbol", gin.WrapF(pprof.Symbol))
		debug.GET("/trace", gin.WrapF(pprof.Trace))
		debug.GET("/:name", func(c *gin.Context) {
			pprof.Handler(c.Param("name")).ServeHTTP(c.Writer, c.Request)
		})
	}

	return r
}

// health reports degraded with 503 while the model server breaker is open
// or the Redis session store is unreachable
func (a *app) health(c *gin.Context) {
	status := "ok"
	services := gin.H{}

	model := gin.H{"source": "file", "columns": len(a.predictor.Schema())}
	if a.breaker != nil {
		state := a.breaker.State()
		model["source"] = "remote"
		model["breaker"] = state.String()
		if state == resilience.StateOpen {
			status = "degraded"
		}
	}
	services["model"] = model

	redis := a.redis.GetPoolStats()
	if a.redis.IsEnabled() {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := a.redis.HealthCheck(ctx); err != nil {
			redis["error"] = err.Error()
			if a.cfg.Session.Backend == "redis" {
				status = "degraded"
			}
		}
	}
	services["redis"] = redis

	response := gin.H{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   version,
		"services":  services,
		"metrics":   a.metrics.GetStats(),
	}
	if memo := a.predictor.Cache(); memo != nil {
		response["prediction_cache"] = memo.Stats()
	}
	response["compression"] = a.compression.GetStats()

	if status != "ok" {
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}
