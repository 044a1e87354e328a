package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/symptom-checker/internal/questionnaire"
)

const fullInput = "Yes\nNo\nYes\nNo\n45\nFemale\nHigh\nNormal\nflu\n"

func init() {
	color.NoColor = true
}

// run executes symptomctl with args against the bundled model
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	model, err := filepath.Abs("../../models/model.json")
	require.NoError(t, err)
	t.Setenv("SYMPTOM_MODEL_PATH", model)

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, nil, 0o600))

	var out bytes.Buffer
	root := newRootCommand()
	root.SetArgs(append(args, "--config", cfgPath))
	root.SetOut(&out)
	root.SetIn(strings.NewReader(stdin))

	err = root.Execute()
	return out.String(), err
}

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		name      string
		debugMode bool
		wantDebug bool
	}{
		{name: "debug mode enabled", debugMode: true, wantDebug: true},
		{name: "debug mode disabled", debugMode: false, wantDebug: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupLogger(tt.debugMode)
			assert.Equal(t, tt.wantDebug, slog.Default().Enabled(context.Background(), slog.LevelDebug))
		})
	}
}

func TestFlagName(t *testing.T) {
	tests := []struct {
		question string
		want     string
	}{
		{question: "Fever", want: "fever"},
		{question: "Difficulty Breathing", want: "difficulty-breathing"},
		{question: "Cholesterol Level", want: "cholesterol-level"},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Equal(t, tt.want, flagName(tt.question))
		})
	}
}

func TestQuestionsCommand(t *testing.T) {
	out, err := run(t, "", "questions")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 9)
	assert.Equal(t, "1. Fever?  --fever  (Yes | No)", lines[0])
	assert.Equal(t, "5. Age?  --age  (0-120)", lines[4])
	assert.Equal(t, "9. Disease?  --disease  (free text, up to 200 characters)", lines[8])
}

func TestColumnsCommand(t *testing.T) {
	out, err := run(t, "", "columns")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 9)
	assert.Equal(t, "Fever", lines[0])
	assert.Equal(t, "Difficulty Breathing", lines[3])
	assert.Equal(t, "Disease", lines[8])
}

func TestPredictCommand(t *testing.T) {
	allFlags := []string{
		"--fever", "Yes", "--cough", "No", "--fatigue", "Yes", "--difficulty-breathing", "No",
		"--age", "45", "--gender", "Female", "--blood-pressure", "High",
		"--cholesterol-level", "Normal", "--disease", "flu",
	}

	tests := []struct {
		name        string
		args        []string
		contains    []string
		expectError string
	}{
		{
			name:     "every answer given",
			args:     allFlags,
			contains: []string{"Predicted Outcome: Positive", "Confidence: 73.11%"},
		},
		{
			name:     "no answers",
			args:     nil,
			contains: []string{"Predicted Outcome: Negative"},
		},
		{
			name:        "answer outside the range",
			args:        []string{"--age", "300"},
			expectError: "Age must be between 0 and 120",
		},
		{
			name:        "unknown option",
			args:        []string{"--fever", "Sometimes"},
			expectError: "Fever must be one of Yes, No",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, "", append([]string{"predict"}, tt.args...)...)
			if tt.expectError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectError)
				return
			}
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestPredictCommand_JSON(t *testing.T) {
	out, err := run(t, "", "predict", "--fever", "Yes", "--json")
	require.NoError(t, err)

	var result struct {
		Outcome  string `json:"outcome"`
		Features struct {
			Columns []string  `json:"columns"`
			Values  []float64 `json:"values"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.NotEmpty(t, result.Outcome)
	assert.Len(t, result.Features.Columns, 9)
	assert.Equal(t, 1.0, result.Features.Values[0])
}

func TestAskAll(t *testing.T) {
	flow := questionnaire.NewFlow(questionnaire.DefaultQuestions())

	t.Run("re-asks after an invalid answer", func(t *testing.T) {
		var out bytes.Buffer
		progress, err := askAll(flow, bufio.NewReader(strings.NewReader("Maybe\n"+fullInput)), &out)
		require.NoError(t, err)

		assert.True(t, flow.Complete(progress))
		fever, _ := progress.Responses.Get("Fever")
		assert.Equal(t, "Yes", fever)
		assert.Equal(t, 2, strings.Count(out.String(), "(1/9) Fever? [Yes/No]"))
		assert.Contains(t, out.String(), "Fever must be one of Yes, No")
	})

	t.Run("last line without newline", func(t *testing.T) {
		input := strings.TrimSuffix(fullInput, "\n")
		progress, err := askAll(flow, bufio.NewReader(strings.NewReader(input)), &bytes.Buffer{})
		require.NoError(t, err)

		disease, _ := progress.Responses.Get("Disease")
		assert.Equal(t, "flu", disease)
	})

	t.Run("input ends early", func(t *testing.T) {
		progress, err := askAll(flow, bufio.NewReader(strings.NewReader("Yes\nNo\n")), &bytes.Buffer{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "input ended")
		assert.Equal(t, 2, progress.Step)
	})
}

func TestAskCommand(t *testing.T) {
	out, err := run(t, fullInput, "ask")
	require.NoError(t, err)

	assert.Contains(t, out, "(9/9) Disease?")
	assert.Contains(t, out, "Predicted Outcome: Positive")
	assert.Contains(t, out, "Confidence: 73.11%")
}
