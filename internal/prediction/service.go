package prediction

import (
	"context"
	"errors"
	"time"

	"github.com/ZanzyTHEbar/symptom-checker/internal/cache"
	"github.com/ZanzyTHEbar/symptom-checker/internal/classifier"
	apperrors "github.com/ZanzyTHEbar/symptom-checker/internal/errors"
	"github.com/ZanzyTHEbar/symptom-checker/internal/features"
	"github.com/ZanzyTHEbar/symptom-checker/internal/monitoring"
	"github.com/ZanzyTHEbar/symptom-checker/internal/questionnaire"
	"github.com/ZanzyTHEbar/symptom-checker/internal/resilience"
)

// Outcome text for the two classes
const (
	OutcomePositive = "Positive"
	OutcomeNegative = "Negative"
)

// Result is one immutable classifier decision
type Result struct {
	Label         int                 `json:"label"`
	Outcome       string              `json:"outcome"`
	Confidence    float64             `json:"confidence"`
	Probabilities []float64           `json:"probabilities"`
	Features      features.FeatureRow `json:"features"`
	ModelVersion  string              `json:"model_version,omitempty"`
	Cached        bool                `json:"cached"`
	PredictedAt   time.Time           `json:"predicted_at"`
}

// clone returns r with its own probability slice
func (r Result) clone() Result {
	r.Probabilities = append([]float64(nil), r.Probabilities...)
	return r
}

// OutcomeFor maps a class label to its display text
func OutcomeFor(label int) string {
	if label == 1 {
		return OutcomePositive
	}
	return OutcomeNegative
}

// Options tune a Service; zero values disable the cache
type Options struct {
	CacheTTL     time.Duration
	CacheSize    int
	ModelVersion string
}

// Service turns answers into predictions. It is safe for concurrent use.
type Service struct {
	encoder    *features.Encoder
	classifier classifier.Classifier
	schema     features.Schema
	memo       *cache.Cache[Result]
	metrics    *monitoring.Metrics
	logger     *monitoring.Logger
	version    string
}

// NewService wires an encoder to a loaded classifier
func NewService(encoder *features.Encoder, model classifier.Classifier, metrics *monitoring.Metrics, logger *monitoring.Logger, opts Options) *Service {
	s := &Service{
		encoder:    encoder,
		classifier: model,
		schema:     model.Columns(),
		metrics:    metrics,
		logger:     logger,
		version:    opts.ModelVersion,
	}
	if opts.CacheTTL > 0 {
		s.memo = cache.New[Result](opts.CacheTTL, opts.CacheSize)
	}
	return s
}

// Schema returns the classifier's column order
func (s *Service) Schema() features.Schema {
	return append(features.Schema(nil), s.schema...)
}

// Cache returns the prediction memo, nil when caching is off
func (s *Service) Cache() *cache.Cache[Result] {
	return s.memo
}

// Encode builds the feature row for responses without predicting
func (s *Service) Encode(responses questionnaire.ResponseSet) features.FeatureRow {
	return s.encoder.Encode(responses, s.schema)
}

// Assess encodes responses and classifies the resulting row
func (s *Service) Assess(ctx context.Context, responses questionnaire.ResponseSet) (Result, error) {
	start := time.Now()
	row := s.Encode(responses)

	var key string
	if s.memo != nil {
		key = cache.HashKey(row.Key())
		if cached, ok := s.memo.Get(key); ok {
			cached = cached.clone()
			cached.Cached = true
			s.record(cached, responses.Len(), time.Since(start), true)
			return cached, nil
		}
	}

	score, err := classifier.Evaluate(ctx, s.classifier, row)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncrementPredictionError()
		}
		return Result{}, classifyError(err)
	}

	result := Result{
		Label:         score.Label,
		Outcome:       OutcomeFor(score.Label),
		Confidence:    score.Confidence,
		Probabilities: score.Probabilities,
		Features:      row,
		ModelVersion:  s.version,
		PredictedAt:   time.Now().UTC(),
	}

	if s.memo != nil {
		s.memo.Set(key, result.clone())
	}
	s.record(result, responses.Len(), time.Since(start), false)
	return result, nil
}

func (s *Service) record(r Result, answered int, duration time.Duration, cacheHit bool) {
	if s.metrics != nil {
		s.metrics.RecordPrediction(r.Outcome, cacheHit, duration)
	}
	if s.logger != nil {
		s.logger.PredictionLogger(r.Outcome, r.Confidence, answered, duration, cacheHit)
	}
}

// classifyError reports remote model failures as upstream errors and anything else as internal
func classifyError(err error) error {
	var status *resilience.StatusError
	var open *resilience.OpenError
	switch {
	case errors.As(err, &open):
		return apperrors.NewModelError("Model server is temporarily unavailable", err)
	case errors.As(err, &status):
		return apperrors.NewModelError("Model server rejected the request", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperrors.NewTimeoutError("Prediction timed out", err)
	case apperrors.IsRetryableError(err):
		return apperrors.NewModelError("Model server unreachable", err)
	default:
		return apperrors.NewInternalError("classifier failed", err)
	}
}
