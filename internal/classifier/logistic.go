package classifier

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/symptom-checker/internal/features"
)

// logisticModel evaluates p(class 1) = sigmoid(intercept + w·x)
type logisticModel struct {
	schema       features.Schema
	classes      []int
	intercept    float64
	coefficients []float64
}

func newLogisticModel(a *Artifact) (*logisticModel, error) {
	if len(a.Coefficients) != len(a.Columns) {
		return nil, fmt.Errorf("logistic model has %d coefficients for %d columns", len(a.Coefficients), len(a.Columns))
	}
	return &logisticModel{
		schema:       append(features.Schema(nil), a.Columns...),
		classes:      append([]int(nil), a.Classes...),
		intercept:    a.Intercept,
		coefficients: append([]float64(nil), a.Coefficients...),
	}, nil
}

func (m *logisticModel) Columns() features.Schema {
	return append(features.Schema(nil), m.schema...)
}

func (m *logisticModel) PredictProba(ctx context.Context, row features.FeatureRow) ([]float64, error) {
	if err := checkRow(m.schema, row); err != nil {
		return nil, err
	}

	z := m.intercept
	for i, w := range m.coefficients {
		z += w * row.At(i)
	}
	p := sigmoid(z)
	return []float64{1 - p, p}, nil
}

func (m *logisticModel) Predict(ctx context.Context, row features.FeatureRow) (int, error) {
	score, err := m.Score(ctx, row)
	if err != nil {
		return 0, err
	}
	return score.Label, nil
}

func (m *logisticModel) Score(ctx context.Context, row features.FeatureRow) (Score, error) {
	proba, err := m.PredictProba(ctx, row)
	if err != nil {
		return Score{}, err
	}
	return scoreLocal(m.classes, proba), nil
}
