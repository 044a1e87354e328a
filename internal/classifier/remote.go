package classifier

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ZanzyTHEbar/symptom-checker/internal/features"
	"github.com/ZanzyTHEbar/symptom-checker/internal/resilience"
)

// RemoteConfig points the classifier at a model server
type RemoteConfig struct {
	BaseURL string        `mapstructure:"url" validate:"omitempty,url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`

	Retry   resilience.RetryConfig   `mapstructure:"retry"`
	Breaker resilience.BreakerConfig `mapstructure:"breaker"`
	Pool    resilience.PoolConfig    `mapstructure:"pool"`
}

type columnsResponse struct {
	Columns []string `json:"columns"`
}

type predictRequest struct {
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

type predictResponse struct {
	Labels        []int       `json:"labels"`
	Probabilities [][]float64 `json:"probabilities"`
}

// Remote is a Classifier served over HTTP. Every call goes through a circuit
// breaker and is retried with backoff on transient failures.
type Remote struct {
	client  *resty.Client
	schema  features.Schema
	retry   resilience.RetryConfig
	breaker *resilience.Breaker
}

// NewRemote connects to the model server and fetches its column order
func NewRemote(ctx context.Context, config RemoteConfig) (*Remote, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("remote model url is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry = resilience.DefaultRetryConfig()
	}
	if config.Pool.MaxIdle == 0 && config.Pool.MaxActive == 0 {
		config.Pool = resilience.DefaultPoolConfig()
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
		SetTransport(resilience.NewTransport(config.Pool)).
		SetTimeout(config.Timeout).
		SetHeader("Accept", "application/json")
	if config.APIKey != "" {
		client.SetAuthToken(config.APIKey)
	}

	r := &Remote{
		client:  client,
		retry:   config.Retry,
		breaker: resilience.NewBreaker("model-server", config.Breaker),
	}

	schema, err := r.fetchColumns(ctx)
	if err != nil {
		return nil, err
	}
	r.schema = schema
	return r, nil
}

func (r *Remote) call(ctx context.Context, fn func() error) error {
	return resilience.Retry(ctx, r.retry, func() error {
		return r.breaker.Call(fn)
	})
}

func (r *Remote) fetchColumns(ctx context.Context) (features.Schema, error) {
	var out columnsResponse
	err := r.call(ctx, func() error {
		res, err := r.client.R().
			SetContext(ctx).
			SetResult(&out).
			Get("/columns")
		if err != nil {
			return fmt.Errorf("client.R.Get > %w", err)
		}
		return checkStatus(res)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch model columns: %w", err)
	}

	schema := features.Schema(out.Columns)
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("model server returned invalid columns: %w", err)
	}
	return schema, nil
}

func (r *Remote) predict(ctx context.Context, row features.FeatureRow) (predictResponse, error) {
	var out predictResponse
	if err := checkRow(r.schema, row); err != nil {
		return out, err
	}

	req := predictRequest{
		Columns: row.Columns(),
		Rows:    [][]float64{row.Values()},
	}
	err := r.call(ctx, func() error {
		res, err := r.client.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(&out).
			Post("/predict")
		if err != nil {
			return fmt.Errorf("client.R.Post > %w", err)
		}
		return checkStatus(res)
	})
	if err != nil {
		return out, err
	}

	if len(out.Labels) != 1 || len(out.Probabilities) != 1 || len(out.Probabilities[0]) != 2 {
		return out, fmt.Errorf("model server returned %d labels and %d probability rows for one row",
			len(out.Labels), len(out.Probabilities))
	}
	return out, nil
}

func checkStatus(res *resty.Response) error {
	if res.StatusCode() == http.StatusOK {
		return nil
	}
	return &resilience.StatusError{StatusCode: res.StatusCode(), Body: strings.TrimSpace(string(res.Body()))}
}

func (r *Remote) Columns() features.Schema {
	return append(features.Schema(nil), r.schema...)
}

func (r *Remote) Predict(ctx context.Context, row features.FeatureRow) (int, error) {
	out, err := r.predict(ctx, row)
	if err != nil {
		return 0, err
	}
	return out.Labels[0], nil
}

func (r *Remote) PredictProba(ctx context.Context, row features.FeatureRow) ([]float64, error) {
	out, err := r.predict(ctx, row)
	if err != nil {
		return nil, err
	}
	return out.Probabilities[0], nil
}

func (r *Remote) Score(ctx context.Context, row features.FeatureRow) (Score, error) {
	out, err := r.predict(ctx, row)
	if err != nil {
		return Score{}, err
	}
	label := out.Labels[0]
	proba := out.Probabilities[0]
	return Score{Label: label, Probabilities: proba, Confidence: confidenceFor(label, proba)}, nil
}

// Breaker exposes the circuit guarding the model server
func (r *Remote) Breaker() *resilience.Breaker {
	return r.breaker
}
