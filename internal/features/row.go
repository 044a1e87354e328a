package features

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Schema is the ordered list of column names a classifier expects
type Schema []string

// Index returns the position of column, or -1
func (s Schema) Index(column string) int {
	for i, c := range s {
		if c == column {
			return i
		}
	}
	return -1
}

// Validate rejects empty or duplicated column names
func (s Schema) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("schema has no columns")
	}
	seen := make(map[string]bool, len(s))
	for i, c := range s {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("schema column %d is empty", i)
		}
		if seen[c] {
			return fmt.Errorf("schema column %q is duplicated", c)
		}
		seen[c] = true
	}
	return nil
}

// Project reindexes values onto the schema, filling missing columns with DefaultValue.
func (s Schema) Project(values map[string]float64) FeatureRow {
	columns := make([]string, len(s))
	copy(columns, s)

	out := make([]float64, len(s))
	for i, c := range s {
		if v, ok := values[c]; ok {
			out[i] = v
		} else {
			out[i] = DefaultValue
		}
	}
	return FeatureRow{columns: columns, values: out}
}

// FeatureRow is a schema-aligned numeric vector. It is never modified after creation.
type FeatureRow struct {
	columns []string
	values  []float64
}

// NewFeatureRow builds a row from parallel column and value slices
func NewFeatureRow(columns []string, values []float64) (FeatureRow, error) {
	if len(columns) != len(values) {
		return FeatureRow{}, fmt.Errorf("feature row has %d columns but %d values", len(columns), len(values))
	}
	c := make([]string, len(columns))
	copy(c, columns)
	v := make([]float64, len(values))
	copy(v, values)
	return FeatureRow{columns: c, values: v}, nil
}

// Columns returns a copy of the column names
func (r FeatureRow) Columns() []string {
	c := make([]string, len(r.columns))
	copy(c, r.columns)
	return c
}

// Values returns a copy of the values in column order
func (r FeatureRow) Values() []float64 {
	v := make([]float64, len(r.values))
	copy(v, r.values)
	return v
}

func (r FeatureRow) Len() int {
	return len(r.values)
}

// At returns the i-th value
func (r FeatureRow) At(i int) float64 {
	return r.values[i]
}

// Get returns the value of a named column
func (r FeatureRow) Get(column string) (float64, bool) {
	for i, c := range r.columns {
		if c == column {
			return r.values[i], true
		}
	}
	return 0, false
}

// Key is a stable string form of the row, used for memoisation
func (r FeatureRow) Key() string {
	var b strings.Builder
	for i, c := range r.columns {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(c)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(r.values[i], 'g', -1, 64))
	}
	return b.String()
}

type featureRowJSON struct {
	Columns []string  `json:"columns"`
	Values  []float64 `json:"values"`
}

func (r FeatureRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(featureRowJSON{Columns: r.Columns(), Values: r.Values()})
}

func (r *FeatureRow) UnmarshalJSON(data []byte) error {
	var raw featureRowJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	row, err := NewFeatureRow(raw.Columns, raw.Values)
	if err != nil {
		return err
	}
	*r = row
	return nil
}
