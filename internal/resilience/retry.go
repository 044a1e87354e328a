package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"

	apperrors "github.com/ZanzyTHEbar/symptom-checker/internal/errors"
)

// RetryConfig holds configuration for retry behavior
type RetryConfig struct {
	MaxAttempts   int              `mapstructure:"max_attempts" validate:"gte=1,lte=10"`
	InitialDelay  time.Duration    `mapstructure:"initial_delay"`
	MaxDelay      time.Duration    `mapstructure:"max_delay"`
	BackoffFactor float64          `mapstructure:"backoff_factor" validate:"gte=1"`
	JitterEnabled bool             `mapstructure:"jitter_enabled"`
	Retryable     func(error) bool `mapstructure:"-"`
}

// DefaultRetryConfig returns defaults suited to a nearby model server
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
		Retryable:     IsRetryable,
	}
}

// Retry calls fn until it succeeds, returns a non-retryable error, runs out
// of attempts or ctx is done. The last error from fn is returned.
func Retry(ctx context.Context, config RetryConfig, fn func() error) error {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.Retryable == nil {
		config.Retryable = IsRetryable
	}

	var lastErr error
	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !config.Retryable(lastErr) || attempt == config.MaxAttempts-1 {
			break
		}

		timer := time.NewTimer(calculateDelay(config, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}

	return lastErr
}

// calculateDelay is initial_delay * backoff_factor^attempt, capped, plus up to 10% jitter
func calculateDelay(config RetryConfig, attempt int) time.Duration {
	delay := time.Duration(float64(config.InitialDelay) * math.Pow(config.BackoffFactor, float64(attempt)))

	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}

	if config.JitterEnabled && delay >= 10 {
		delay += time.Duration(rand.Int63n(int64(delay / 10)))
	}

	return delay
}

// StatusError is a non-2xx answer from a remote service
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("remote returned %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// IsRetryableStatus reports whether an HTTP status is worth another attempt
func IsRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// IsRetryable treats transient statuses and network or timeout failures as retryable.
// An open breaker is not retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var open *OpenError
	if errors.As(err, &open) {
		return false
	}

	var status *StatusError
	if errors.As(err, &status) {
		return IsRetryableStatus(status.StatusCode)
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	return apperrors.IsRetryableError(err)
}
