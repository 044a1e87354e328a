package questionnaire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// ResponseSet holds the raw answers of one questionnaire session.
// It is immutable: With and Without return modified copies.
type ResponseSet struct {
	answers map[string]string
}

// NewResponseSet builds a ResponseSet from a plain map
func NewResponseSet(answers map[string]string) ResponseSet {
	rs := ResponseSet{answers: make(map[string]string, len(answers))}
	for k, v := range answers {
		rs.answers[k] = v
	}
	return rs
}

// With returns a copy of the set with name set to value
func (rs ResponseSet) With(name, value string) ResponseSet {
	next := ResponseSet{answers: make(map[string]string, len(rs.answers)+1)}
	for k, v := range rs.answers {
		next.answers[k] = v
	}
	next.answers[name] = value
	return next
}

// Without returns a copy of the set with name removed
func (rs ResponseSet) Without(name string) ResponseSet {
	next := ResponseSet{answers: make(map[string]string, len(rs.answers))}
	for k, v := range rs.answers {
		if k != name {
			next.answers[k] = v
		}
	}
	return next
}

// Get returns the raw answer for name
func (rs ResponseSet) Get(name string) (string, bool) {
	v, ok := rs.answers[name]
	return v, ok
}

func (rs ResponseSet) Len() int {
	return len(rs.answers)
}

// Names returns the answered question names in sorted order
func (rs ResponseSet) Names() []string {
	names := make([]string, 0, len(rs.answers))
	for k := range rs.answers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Map returns a copy of the answers
func (rs ResponseSet) Map() map[string]string {
	out := make(map[string]string, len(rs.answers))
	for k, v := range rs.answers {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the set as a flat object
func (rs ResponseSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(rs.Map())
}

// UnmarshalJSON accepts an object whose values are strings, numbers, booleans or null.
// Numbers keep their literal text; null entries are treated as unanswered.
func (rs *ResponseSet) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("responses must be a JSON object: %w", err)
	}

	answers := make(map[string]string, len(raw))
	for name, msg := range raw {
		msg = bytes.TrimSpace(msg)
		switch {
		case len(msg) == 0 || bytes.Equal(msg, []byte("null")):
			continue
		case msg[0] == '"':
			var s string
			if err := json.Unmarshal(msg, &s); err != nil {
				return fmt.Errorf("answer %q: %w", name, err)
			}
			answers[name] = s
		case bytes.Equal(msg, []byte("true")) || bytes.Equal(msg, []byte("false")):
			answers[name] = string(msg)
		default:
			var n json.Number
			if err := json.Unmarshal(msg, &n); err != nil {
				return fmt.Errorf("answer %q must be a string or number", name)
			}
			if f, err := n.Float64(); err == nil {
				answers[name] = strconv.FormatFloat(f, 'f', -1, 64)
			} else {
				answers[name] = n.String()
			}
		}
	}

	rs.answers = answers
	return nil
}
