package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/ZanzyTHEbar/symptom-checker/internal/features"
)

// Classifier is a trained binary model. Implementations are read-only after
// construction and safe for concurrent use.
type Classifier interface {
	// Columns is the ordered schema the model was trained on
	Columns() features.Schema
	Predict(ctx context.Context, row features.FeatureRow) (int, error)
	PredictProba(ctx context.Context, row features.FeatureRow) ([]float64, error)
}

// Score is one model decision with its class probabilities
type Score struct {
	Label         int
	Probabilities []float64
	// Confidence is the probability the model assigned to Label
	Confidence float64
}

// Scorer is implemented by classifiers that produce a label and its
// probabilities in one evaluation
type Scorer interface {
	Score(ctx context.Context, row features.FeatureRow) (Score, error)
}

// Evaluate scores row with c, using a single evaluation when c supports it
func Evaluate(ctx context.Context, c Classifier, row features.FeatureRow) (Score, error) {
	if s, ok := c.(Scorer); ok {
		return s.Score(ctx, row)
	}

	label, err := c.Predict(ctx, row)
	if err != nil {
		return Score{}, err
	}
	proba, err := c.PredictProba(ctx, row)
	if err != nil {
		return Score{}, err
	}
	return Score{Label: label, Probabilities: proba, Confidence: confidenceFor(label, proba)}, nil
}

// confidenceFor treats labels as indexes into proba, falling back to the largest probability
func confidenceFor(label int, proba []float64) float64 {
	if label >= 0 && label < len(proba) {
		return proba[label]
	}
	best := 0.0
	for _, p := range proba {
		if p > best {
			best = p
		}
	}
	return best
}

// Kinds of serialized model
const (
	KindLogistic     = "logistic_regression"
	KindTreeEnsemble = "tree_ensemble"
)

// Artifact is the on-disk form of a trained model and its column order
type Artifact struct {
	Kind    string   `json:"kind"`
	Version string   `json:"version,omitempty"`
	Columns []string `json:"columns"`
	Classes []int    `json:"classes"`

	// logistic_regression
	Intercept    float64   `json:"intercept,omitempty"`
	Coefficients []float64 `json:"coefficients,omitempty"`

	// tree_ensemble
	Trees []Tree `json:"trees,omitempty"`
}

type decoder func(a *Artifact) (Classifier, error)

var decoders = map[string]decoder{
	KindLogistic: func(a *Artifact) (Classifier, error) {
		return newLogisticModel(a)
	},
	KindTreeEnsemble: func(a *Artifact) (Classifier, error) {
		return newTreeEnsemble(a)
	},
}

// LoadFile reads a JSON artifact from disk
func LoadFile(path string) (Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}
	return Load(data)
}

// Load decodes a JSON artifact
func Load(data []byte) (Classifier, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode model artifact: %w", err)
	}
	return FromArtifact(&a)
}

// FromArtifact builds the classifier described by a
func FromArtifact(a *Artifact) (Classifier, error) {
	if err := features.Schema(a.Columns).Validate(); err != nil {
		return nil, fmt.Errorf("invalid model columns: %w", err)
	}
	if len(a.Classes) == 0 {
		a.Classes = []int{0, 1}
	}
	if len(a.Classes) != 2 {
		return nil, fmt.Errorf("model must be binary, got %d classes", len(a.Classes))
	}

	dec, ok := decoders[a.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown model kind %q", a.Kind)
	}
	return dec(a)
}

// checkRow verifies a row is aligned to the model schema
func checkRow(schema features.Schema, row features.FeatureRow) error {
	cols := row.Columns()
	if len(cols) != len(schema) {
		return fmt.Errorf("feature row has %d columns, model expects %d", len(cols), len(schema))
	}
	for i, c := range schema {
		if cols[i] != c {
			return fmt.Errorf("feature column %d is %q, model expects %q", i, cols[i], c)
		}
	}
	return nil
}

// argmax returns the index with the highest probability; ties go to the lower index.
func argmax(proba []float64) int {
	best := 0
	for i := 1; i < len(proba); i++ {
		if proba[i] > proba[best] {
			best = i
		}
	}
	return best
}

func scoreLocal(classes []int, proba []float64) Score {
	best := argmax(proba)
	return Score{Label: classes[best], Probabilities: proba, Confidence: proba[best]}
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }
