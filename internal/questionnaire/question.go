package questionnaire

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Domain describes what kind of answer a question accepts
type Domain string

const (
	DomainChoice  Domain = "choice"
	DomainText    Domain = "text"
	DomainInteger Domain = "integer"
)

// MaxTextLength bounds free-text answers
const MaxTextLength = 200

// Question is a single entry of the questionnaire catalogue
type Question struct {
	Name    string   `json:"name"`
	Column  string   `json:"column"`
	Prompt  string   `json:"prompt"`
	Domain  Domain   `json:"domain"`
	Options []string `json:"options,omitempty"`
	Min     int      `json:"min,omitempty"`
	Max     int      `json:"max,omitempty"`
}

// Label is the text shown next to an input widget for this question
func (q Question) Label() string {
	if q.Domain == DomainChoice {
		return q.Prompt
	}
	return q.Name + ":"
}

// HasOption reports whether value is one of the question's fixed options
func (q Question) HasOption(value string) bool {
	for _, opt := range q.Options {
		if opt == value {
			return true
		}
	}
	return false
}

// Parse validates a raw answer against the question's domain and returns its canonical form.
func (q Question) Parse(raw string) (string, error) {
	value := strings.TrimSpace(raw)

	switch q.Domain {
	case DomainChoice:
		if !q.HasOption(value) {
			return "", fmt.Errorf("%s must be one of %s", q.Name, strings.Join(q.Options, ", "))
		}
		return value, nil

	case DomainInteger:
		if value == "" {
			return "", fmt.Errorf("%s is required", q.Name)
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return "", fmt.Errorf("%s must be a whole number", q.Name)
		}
		if n < q.Min || n > q.Max {
			return "", fmt.Errorf("%s must be between %d and %d", q.Name, q.Min, q.Max)
		}
		return strconv.Itoa(n), nil

	case DomainText:
		if utf8.RuneCountInString(value) > MaxTextLength {
			return "", fmt.Errorf("%s exceeds maximum length of %d characters", q.Name, MaxTextLength)
		}
		if strings.Contains(value, "\x00") || !utf8.ValidString(value) {
			return "", fmt.Errorf("%s contains invalid characters", q.Name)
		}
		return value, nil

	default:
		return "", fmt.Errorf("unknown domain %q for question %s", q.Domain, q.Name)
	}
}

var yesNo = []string{"Yes", "No"}

// DefaultQuestions returns the symptom checker catalogue in asking order.
func DefaultQuestions() []Question {
	return []Question{
		{Name: "Fever", Column: "Fever", Prompt: "Fever?", Domain: DomainChoice, Options: yesNo},
		{Name: "Cough", Column: "Cough", Prompt: "Cough?", Domain: DomainChoice, Options: yesNo},
		{Name: "Fatigue", Column: "Fatigue", Prompt: "Fatigue?", Domain: DomainChoice, Options: yesNo},
		{Name: "Difficulty Breathing", Column: "Difficulty Breathing", Prompt: "Difficulty Breathing?", Domain: DomainChoice, Options: yesNo},
		{Name: "Age", Column: "Age", Prompt: "Age?", Domain: DomainInteger, Min: 0, Max: 120},
		{Name: "Gender", Column: "Gender", Prompt: "Gender?", Domain: DomainChoice, Options: []string{"Male", "Female"}},
		{Name: "Blood Pressure", Column: "Blood Pressure", Prompt: "Blood Pressure?", Domain: DomainChoice, Options: []string{"Normal", "High"}},
		{Name: "Cholesterol Level", Column: "Cholesterol Level", Prompt: "Cholesterol Level?", Domain: DomainChoice, Options: []string{"Normal", "High"}},
		{Name: "Disease", Column: "Disease", Prompt: "Disease?", Domain: DomainText},
	}
}
