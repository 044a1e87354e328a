package questionnaire

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fullAnswers = map[string]string{
	"Fever":                "Yes",
	"Cough":                "No",
	"Fatigue":              "Yes",
	"Difficulty Breathing": "No",
	"Age":                  "45",
	"Gender":               "Female",
	"Blood Pressure":       "High",
	"Cholesterol Level":    "Normal",
	"Disease":              "flu",
}

func TestQuestionParse(t *testing.T) {
	questions := DefaultQuestions()
	fever := questions[0]
	age := questions[4]
	disease := questions[8]

	tests := []struct {
		name        string
		question    Question
		raw         string
		expected    string
		expectError bool
	}{
		{name: "valid choice", question: fever, raw: "Yes", expected: "Yes"},
		{name: "choice is trimmed", question: fever, raw: "  No ", expected: "No"},
		{name: "choice outside options", question: fever, raw: "Maybe", expectError: true},
		{name: "choice is case sensitive", question: fever, raw: "yes", expectError: true},
		{name: "valid integer", question: age, raw: "45", expected: "45"},
		{name: "integer lower bound", question: age, raw: "0", expected: "0"},
		{name: "integer upper bound", question: age, raw: "120", expected: "120"},
		{name: "integer above bound", question: age, raw: "121", expectError: true},
		{name: "negative integer", question: age, raw: "-1", expectError: true},
		{name: "non numeric integer", question: age, raw: "forty", expectError: true},
		{name: "empty integer", question: age, raw: "", expectError: true},
		{name: "free text", question: disease, raw: " flu ", expected: "flu"},
		{name: "empty free text", question: disease, raw: "", expected: ""},
		{name: "free text too long", question: disease, raw: strings.Repeat("a", MaxTextLength+1), expectError: true},
		{name: "free text with null byte", question: disease, raw: "a\x00b", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.question.Parse(tt.raw)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFlow_StepsThroughEveryQuestion(t *testing.T) {
	flow := NewFlow(DefaultQuestions())
	p := flow.Start(KindSteps)

	assert.Equal(t, 0, p.Step)
	assert.Equal(t, 0, p.Responses.Len())
	assert.Empty(t, p.Transcript)

	for i, q := range flow.Questions() {
		current, ok := flow.Current(p)
		require.True(t, ok)
		assert.Equal(t, q.Name, current.Name)
		assert.False(t, flow.Complete(p))

		next, err := flow.Answer(p, fullAnswers[q.Name])
		require.NoError(t, err)
		assert.Equal(t, i+1, next.Step)
		assert.Equal(t, i, p.Step, "previous progress must not change")
		p = next
	}

	assert.True(t, flow.Complete(p))
	assert.Equal(t, len(fullAnswers), p.Responses.Len())

	_, err := flow.Answer(p, "Yes")
	assert.ErrorIs(t, err, ErrComplete)
}

func TestFlow_InvalidAnswerKeepsProgress(t *testing.T) {
	flow := NewFlow(DefaultQuestions())
	p := flow.Start(KindChat)

	next, err := flow.Answer(p, "Sometimes")

	var answerErr *AnswerError
	require.ErrorAs(t, err, &answerErr)
	assert.Equal(t, "Fever", answerErr.Question)
	assert.Equal(t, p.Step, next.Step)
	assert.Equal(t, p.Transcript, next.Transcript)
}

func TestFlow_ChatTranscript(t *testing.T) {
	flow := NewFlow(DefaultQuestions())
	p := flow.Start(KindChat)

	require.Len(t, p.Transcript, 1)
	assert.Equal(t, Message{Speaker: SpeakerBot, Text: "Fever?"}, p.Transcript[0])

	p, err := flow.Answer(p, "Yes")
	require.NoError(t, err)
	require.Len(t, p.Transcript, 3)
	assert.Equal(t, Message{Speaker: SpeakerUser, Text: "Yes"}, p.Transcript[1])
	assert.Equal(t, Message{Speaker: SpeakerBot, Text: "Cough?"}, p.Transcript[2])

	p, err = flow.AnswerAll(p, fullAnswers)
	require.NoError(t, err)
	assert.True(t, flow.Complete(p))
	// one bot prompt and one user reply per question
	assert.Len(t, p.Transcript, 2*flow.Len())

	p = flow.Conclude(p, "Positive", 0.875)
	last := p.Transcript[len(p.Transcript)-2:]
	assert.Equal(t, "Predicted Outcome: Positive", last[0].Text)
	assert.Equal(t, "Confidence: 87.50%", last[1].Text)
}

func TestFlow_ConcludeIgnoresNonChat(t *testing.T) {
	flow := NewFlow(DefaultQuestions())
	p, err := flow.AnswerAll(flow.Start(KindForm), fullAnswers)
	require.NoError(t, err)

	concluded := flow.Conclude(p, "Negative", 0.6)
	assert.Empty(t, concluded.Transcript)
}

func TestFlow_Restart(t *testing.T) {
	flow := NewFlow(DefaultQuestions())
	p, err := flow.AnswerAll(flow.Start(KindChat), fullAnswers)
	require.NoError(t, err)

	restarted := flow.Restart(p)

	assert.Equal(t, 0, restarted.Step)
	assert.Equal(t, 0, restarted.Responses.Len())
	assert.Len(t, restarted.Transcript, 1)
	assert.Equal(t, KindChat, restarted.Kind)
}

func TestFlow_AnswerAllStopsAtFirstInvalid(t *testing.T) {
	flow := NewFlow(DefaultQuestions())
	answers := map[string]string{"Fever": "Yes", "Cough": "Often"}

	p, err := flow.AnswerAll(flow.Start(KindForm), answers)

	require.Error(t, err)
	assert.Equal(t, 1, p.Step)
}

func TestResponseSet_Immutable(t *testing.T) {
	base := NewResponseSet(map[string]string{"Fever": "Yes"})
	changed := base.With("Cough", "No").With("Fever", "No")

	v, _ := base.Get("Fever")
	assert.Equal(t, "Yes", v)
	assert.Equal(t, 1, base.Len())

	v, _ = changed.Get("Fever")
	assert.Equal(t, "No", v)
	assert.Equal(t, []string{"Cough", "Fever"}, changed.Names())

	removed := changed.Without("Cough")
	assert.Equal(t, 2, changed.Len())
	assert.Equal(t, 1, removed.Len())
}

func TestResponseSet_JSON(t *testing.T) {
	var rs ResponseSet
	err := json.Unmarshal([]byte(`{"Fever":"Yes","Age":45,"Weight":70.5,"Disease":null}`), &rs)
	require.NoError(t, err)

	age, ok := rs.Get("Age")
	require.True(t, ok)
	assert.Equal(t, "45", age)

	weight, _ := rs.Get("Weight")
	assert.Equal(t, "70.5", weight)

	_, ok = rs.Get("Disease")
	assert.False(t, ok)

	data, err := json.Marshal(rs)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Fever":"Yes","Age":"45","Weight":"70.5"}`, string(data))

	assert.Error(t, json.Unmarshal([]byte(`["Yes"]`), &rs))
	assert.Error(t, json.Unmarshal([]byte(`{"Fever":{"a":1}}`), &rs))
}

func TestProgress_JSONRoundTrip(t *testing.T) {
	flow := NewFlow(DefaultQuestions())
	p, err := flow.Answer(flow.Start(KindChat), "No")
	require.NoError(t, err)

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded Progress
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, p.Step, decoded.Step)
	assert.Equal(t, p.Transcript, decoded.Transcript)
	assert.Equal(t, p.Responses.Map(), decoded.Responses.Map())
}
