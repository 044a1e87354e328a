package features

import (
	"math"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/symptom-checker/internal/questionnaire"
)

// DefaultValue fills every column that has no usable answer
const DefaultValue = 0.0

// Rule turns the raw answer of one question into one numeric column
type Rule struct {
	Question string
	Column   string
	Encode   func(raw string, answered bool) float64
}

// Lookup encodes categorical answers through a fixed table; anything not in the table is DefaultValue.
func Lookup(table map[string]float64) func(string, bool) float64 {
	return func(raw string, answered bool) float64 {
		if !answered {
			return DefaultValue
		}
		if v, ok := table[raw]; ok {
			return v
		}
		return DefaultValue
	}
}

// Numeric passes a finite number through; unparseable, NaN or infinite input is DefaultValue.
func Numeric(raw string, answered bool) float64 {
	if !answered {
		return DefaultValue
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return DefaultValue
	}
	return v
}

// Constant ignores the answer entirely
func Constant(v float64) func(string, bool) float64 {
	return func(string, bool) float64 { return v }
}

var (
	binaryMap = map[string]float64{"Yes": 1, "No": 0}
	genderMap = map[string]float64{"Male": 0, "Female": 1}
	levelMap  = map[string]float64{"Normal": 0, "High": 1}
)

// DefaultRules is the encoding table for the symptom questionnaire
func DefaultRules() []Rule {
	return []Rule{
		{Question: "Fever", Column: "Fever", Encode: Lookup(binaryMap)},
		{Question: "Cough", Column: "Cough", Encode: Lookup(binaryMap)},
		{Question: "Fatigue", Column: "Fatigue", Encode: Lookup(binaryMap)},
		{Question: "Difficulty Breathing", Column: "Difficulty Breathing", Encode: Lookup(binaryMap)},
		{Question: "Age", Column: "Age", Encode: Numeric},
		{Question: "Gender", Column: "Gender", Encode: Lookup(genderMap)},
		{Question: "Blood Pressure", Column: "Blood Pressure", Encode: Lookup(levelMap)},
		{Question: "Cholesterol Level", Column: "Cholesterol Level", Encode: Lookup(levelMap)},
		// free text is not encoded
		{Question: "Disease", Column: "Disease", Encode: Constant(0)},
	}
}

// Encoder maps a ResponseSet onto a classifier schema
type Encoder struct {
	rules []Rule
}

// NewEncoder creates an encoder with the given rules
func NewEncoder(rules []Rule) *Encoder {
	rs := make([]Rule, len(rules))
	copy(rs, rules)
	return &Encoder{rules: rs}
}

// NewDefaultEncoder creates an encoder with DefaultRules
func NewDefaultEncoder() *Encoder {
	return NewEncoder(DefaultRules())
}

// Raw applies every rule and returns the unprojected column values
func (e *Encoder) Raw(responses questionnaire.ResponseSet) map[string]float64 {
	row := make(map[string]float64, len(e.rules))
	for _, rule := range e.rules {
		raw, answered := responses.Get(rule.Question)
		row[rule.Column] = rule.Encode(raw, answered)
	}
	return row
}

// Encode produces a FeatureRow with exactly the schema's columns in the schema's order.
// Schema columns with no rule are DefaultValue; rule columns outside the schema are dropped.
func (e *Encoder) Encode(responses questionnaire.ResponseSet, schema Schema) FeatureRow {
	return schema.Project(e.Raw(responses))
}
