package questionnaire

import (
	"errors"
	"fmt"
)

// Kind identifies which interaction flow drives a questionnaire
type Kind string

const (
	KindChat  Kind = "chat"
	KindSteps Kind = "steps"
	KindForm  Kind = "form"
)

// Valid reports whether k is a known flow kind
func (k Kind) Valid() bool {
	switch k {
	case KindChat, KindSteps, KindForm:
		return true
	}
	return false
}

// Speaker of a transcript message
type Speaker string

const (
	SpeakerBot  Speaker = "bot"
	SpeakerUser Speaker = "user"
)

// Message is one chat bubble
type Message struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Progress is the state of one questionnaire session. Every transition
// returns a new Progress; callers never mutate one in place.
type Progress struct {
	Kind       Kind        `json:"kind"`
	Step       int         `json:"step"`
	Responses  ResponseSet `json:"responses"`
	Transcript []Message   `json:"transcript,omitempty"`
}

var ErrComplete = errors.New("questionnaire is already complete")

// AnswerError reports an answer that does not fit the current question
type AnswerError struct {
	Question string
	Reason   string
}

func (e *AnswerError) Error() string {
	return fmt.Sprintf("invalid answer for %s: %s", e.Question, e.Reason)
}

// Flow walks a fixed question catalogue one answer at a time
type Flow struct {
	questions []Question
}

// NewFlow creates a flow over the given questions
func NewFlow(questions []Question) *Flow {
	qs := make([]Question, len(questions))
	copy(qs, questions)
	return &Flow{questions: qs}
}

// Questions returns a copy of the catalogue
func (f *Flow) Questions() []Question {
	qs := make([]Question, len(f.questions))
	copy(qs, f.questions)
	return qs
}

// Len is the number of questions
func (f *Flow) Len() int {
	return len(f.questions)
}

// Lookup finds a question by name
func (f *Flow) Lookup(name string) (Question, bool) {
	for _, q := range f.questions {
		if q.Name == name {
			return q, true
		}
	}
	return Question{}, false
}

// Start returns a fresh Progress for the given flow kind
func (f *Flow) Start(kind Kind) Progress {
	p := Progress{Kind: kind, Responses: NewResponseSet(nil)}
	return f.prompt(p)
}

// Complete reports whether every question has been answered
func (f *Flow) Complete(p Progress) bool {
	return p.Step >= len(f.questions)
}

// Current returns the question awaiting an answer
func (f *Flow) Current(p Progress) (Question, bool) {
	if p.Step < 0 || f.Complete(p) {
		return Question{}, false
	}
	return f.questions[p.Step], true
}

// Answer records raw as the answer to the current question and advances by one step.
// An answer outside the question's domain leaves p unchanged and returns an *AnswerError.
func (f *Flow) Answer(p Progress, raw string) (Progress, error) {
	q, ok := f.Current(p)
	if !ok {
		return p, ErrComplete
	}

	value, err := q.Parse(raw)
	if err != nil {
		return p, &AnswerError{Question: q.Name, Reason: err.Error()}
	}

	next := Progress{
		Kind:       p.Kind,
		Step:       p.Step + 1,
		Responses:  p.Responses.With(q.Name, value),
		Transcript: cloneTranscript(p.Transcript),
	}
	if next.Kind == KindChat {
		display := value
		if display == "" {
			display = "(no answer)"
		}
		next.Transcript = append(next.Transcript, Message{Speaker: SpeakerUser, Text: display})
	}

	return f.prompt(next), nil
}

// AnswerAll fills every question from answers in catalogue order, stopping at the first invalid one.
func (f *Flow) AnswerAll(p Progress, answers map[string]string) (Progress, error) {
	for !f.Complete(p) {
		q, _ := f.Current(p)
		next, err := f.Answer(p, answers[q.Name])
		if err != nil {
			return p, err
		}
		p = next
	}
	return p, nil
}

// Conclude appends the outcome messages to a completed chat transcript
func (f *Flow) Conclude(p Progress, outcome string, confidence float64) Progress {
	if p.Kind != KindChat {
		return p
	}
	next := p
	next.Transcript = append(cloneTranscript(p.Transcript),
		Message{Speaker: SpeakerBot, Text: "Predicted Outcome: " + outcome},
		Message{Speaker: SpeakerBot, Text: FormatConfidence(confidence)},
	)
	return next
}

// Restart discards every answer and returns to the first question
func (f *Flow) Restart(p Progress) Progress {
	return f.Start(p.Kind)
}

// prompt appends the bot question for the current step in chat flows
func (f *Flow) prompt(p Progress) Progress {
	if p.Kind != KindChat {
		return p
	}
	if q, ok := f.Current(p); ok {
		p.Transcript = append(p.Transcript, Message{Speaker: SpeakerBot, Text: q.Prompt})
	}
	return p
}

func cloneTranscript(in []Message) []Message {
	if in == nil {
		return nil
	}
	out := make([]Message, len(in), len(in)+3)
	copy(out, in)
	return out
}

// FormatConfidence renders a probability as "Confidence: 87.50%"
func FormatConfidence(p float64) string {
	return fmt.Sprintf("Confidence: %.2f%%", p*100)
}
