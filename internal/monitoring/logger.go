package monitoring

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger provides structured logging with domain helpers
type Logger struct {
	*slog.Logger
}

// ParseLevel maps debug/info/warn/error to a slog level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewHandler builds the JSON handler used across the service
func NewHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	})
}

// NewLogger creates a logger writing JSON to stdout
func NewLogger(level string) *Logger {
	return NewLoggerWithWriter(os.Stdout, level)
}

// NewLoggerWithWriter creates a logger writing JSON to w
func NewLoggerWithWriter(w io.Writer, level string) *Logger {
	return &Logger{Logger: slog.New(NewHandler(w, ParseLevel(level)))}
}

// RequestLogger logs HTTP request details
func (l *Logger) RequestLogger(method, path, ip, userAgent, requestID string, statusCode int, duration time.Duration) {
	level := slog.LevelInfo
	if statusCode >= 500 {
		level = slog.LevelError
	} else if statusCode >= 400 {
		level = slog.LevelWarn
	}

	l.Log(context.Background(), level, "HTTP Request",
		"method", method,
		"path", path,
		"ip", ip,
		"user_agent", userAgent,
		"request_id", requestID,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	)
}

// PredictionLogger logs one classifier decision. Answers are never logged.
func (l *Logger) PredictionLogger(outcome string, confidence float64, answered int, duration time.Duration, cacheHit bool) {
	l.Info("Prediction Completed",
		"outcome", outcome,
		"confidence", confidence,
		"answered", answered,
		"duration_ms", duration.Milliseconds(),
		"cache_hit", cacheHit,
	)
}

// SessionLogger logs questionnaire session lifecycle events
func (l *Logger) SessionLogger(event, sessionID, flow string, step int) {
	l.Info("Session Event",
		"event", event,
		"session_id", sessionID,
		"flow", flow,
		"step", step,
	)
}

// ExternalAPILogger logs calls and state changes of remote dependencies
func (l *Logger) ExternalAPILogger(apiName, event string, success bool, attrs ...any) {
	level := slog.LevelInfo
	if !success {
		level = slog.LevelWarn
	}

	args := append([]any{"api_name", apiName, "event", event, "success", success}, attrs...)
	l.Log(context.Background(), level, "External API", args...)
}

// SystemLogger logs system-level events
func (l *Logger) SystemLogger(event, details string) {
	l.Info("System Event",
		"event", event,
		"details", details,
		"uptime", time.Since(startTime).Round(time.Second).String(),
	)
}

// SecurityLogger logs security-related events
func (l *Logger) SecurityLogger(event, ip, userAgent string, details map[string]interface{}) {
	attrs := []any{
		"event", event,
		"ip", ip,
		"user_agent", userAgent,
	}

	for key, value := range details {
		attrs = append(attrs, key, value)
	}

	l.Warn("Security Event", attrs...)
}

var startTime = time.Now()
