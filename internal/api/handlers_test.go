package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/symptom-checker/internal/classifier"
	apperrors "github.com/ZanzyTHEbar/symptom-checker/internal/errors"
	"github.com/ZanzyTHEbar/symptom-checker/internal/features"
	"github.com/ZanzyTHEbar/symptom-checker/internal/monitoring"
	"github.com/ZanzyTHEbar/symptom-checker/internal/prediction"
	"github.com/ZanzyTHEbar/symptom-checker/internal/questionnaire"
	"github.com/ZanzyTHEbar/symptom-checker/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const logisticArtifact = `{
  "kind": "logistic_regression",
  "columns": ["Fever","Cough","Fatigue","Difficulty Breathing","Age","Gender","Blood Pressure","Cholesterol Level","Disease"],
  "intercept": -2.5,
  "coefficients": [1.2, 0.8, 0.6, 1.0, 0.02, 0.1, 0.7, 0.5, 0.0]
}`

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

type failingPredictor struct {
	*prediction.Service
}

func (failingPredictor) Assess(ctx context.Context, responses questionnaire.ResponseSet) (prediction.Result, error) {
	return prediction.Result{}, apperrors.NewModelError("Model server is temporarily unavailable", errors.New("503"))
}

func newService(t *testing.T) *prediction.Service {
	t.Helper()
	model, err := classifier.Load([]byte(logisticArtifact))
	require.NoError(t, err)
	logger := monitoring.NewLoggerWithWriter(io.Discard, "info")
	return prediction.NewService(features.NewDefaultEncoder(), model, nil, logger, prediction.Options{})
}

func newRouter(t *testing.T, predictor Predictor, clean TextCleaner) *gin.Engine {
	t.Helper()
	svc := newService(t)
	if predictor == nil {
		predictor = svc
	}
	flow := questionnaire.NewFlow(questionnaire.DefaultQuestions())
	logger := monitoring.NewLoggerWithWriter(io.Discard, "info")
	manager := session.NewManager(flow, session.NewMemoryStore(time.Hour, 0), svc, nil, logger)

	router := gin.New()
	NewHandler(predictor, manager, clean).Register(router.Group("/api"))
	return router
}

func do(t *testing.T, router *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var decoded map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded), w.Body.String())
	}
	return w, decoded
}

func toJSON(t *testing.T, v interface{}) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(v))
	return buf.String()
}

func TestListQuestions(t *testing.T) {
	router := newRouter(t, nil, nil)

	w, body := do(t, router, http.MethodGet, "/api/questions", "")

	require.Equal(t, http.StatusOK, w.Code)
	questions := body["questions"].([]interface{})
	require.Len(t, questions, 9)
	first := questions[0].(map[string]interface{})
	assert.Equal(t, "Fever", first["name"])
	assert.Equal(t, "choice", first["domain"])
	assert.Equal(t, []interface{}{"Yes", "No"}, first["options"])
}

func TestGetSchema(t *testing.T) {
	router := newRouter(t, nil, nil)

	w, body := do(t, router, http.MethodGet, "/api/schema", "")

	require.Equal(t, http.StatusOK, w.Code)
	columns := body["columns"].([]interface{})
	require.Len(t, columns, 9)
	assert.Equal(t, "Fever", columns[0])
	assert.Equal(t, "Disease", columns[8])
}

func TestEncode(t *testing.T) {
	router := newRouter(t, nil, nil)

	w, body := do(t, router, http.MethodPost, "/api/encode", `{"Fever":"Yes","Age":45,"Gender":"Other","Unknown":"x"}`)

	require.Equal(t, http.StatusOK, w.Code)
	row := body["features"].(map[string]interface{})
	assert.Equal(t, []interface{}{1.0, 0.0, 0.0, 0.0, 45.0, 0.0, 0.0, 0.0, 0.0}, row["values"])
}

func TestEncode_NonFiniteAgeIsZero(t *testing.T) {
	router := newRouter(t, nil, nil)

	for _, age := range []string{"NaN", "Inf", "-Inf"} {
		t.Run(age, func(t *testing.T) {
			w, body := do(t, router, http.MethodPost, "/api/encode", `{"Fever":"Yes","Age":"`+age+`"}`)

			require.Equal(t, http.StatusOK, w.Code)
			require.NotEmpty(t, w.Body.String())
			row := body["features"].(map[string]interface{})
			assert.Equal(t, []interface{}{1.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0}, row["values"])
		})
	}
}

func TestPredict(t *testing.T) {
	router := newRouter(t, nil, nil)

	w, body := do(t, router, http.MethodPost, "/api/predict", toJSON(t, fullAnswers))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Positive", body["outcome"])
	assert.Equal(t, 1.0, body["label"])
	assert.InDelta(t, 0.7310585786, body["confidence"], 1e-9)
}

func TestPredict_Lenient(t *testing.T) {
	router := newRouter(t, nil, nil)

	w, body := do(t, router, http.MethodPost, "/api/predict", `{}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Negative", body["outcome"])
	assert.InDelta(t, 0.92414182, body["confidence"], 1e-6)
}

func TestPredict_NonFiniteAgeMatchesUnanswered(t *testing.T) {
	router := newRouter(t, nil, nil)

	w, body := do(t, router, http.MethodPost, "/api/predict", `{"Age":"Inf"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Negative", body["outcome"])
	assert.InDelta(t, 0.92414182, body["confidence"], 1e-6)
}

func TestPredict_BadBody(t *testing.T) {
	router := newRouter(t, nil, nil)

	tests := []struct {
		name string
		body string
	}{
		{name: "empty", body: ""},
		{name: "array", body: `["Yes"]`},
		{name: "nested", body: `{"Fever":{"a":1}}`},
		{name: "malformed", body: `{"Fever":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := do(t, router, http.MethodPost, "/api/predict", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "validation", body["category"])
		})
	}
}

func TestPredict_ModelFailure(t *testing.T) {
	router := newRouter(t, failingPredictor{newService(t)}, nil)

	w, body := do(t, router, http.MethodPost, "/api/predict", toJSON(t, fullAnswers))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "model", body["category"])
}

func TestSessionLifecycle(t *testing.T) {
	router := newRouter(t, nil, nil)

	w, body := do(t, router, http.MethodPost, "/api/sessions", `{"kind":"chat"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id := body["id"].(string)
	assert.True(t, session.ValidID(id))
	assert.Equal(t, "chat", body["kind"])
	assert.Equal(t, 9.0, body["total"])
	assert.Equal(t, "Fever", body["question"].(map[string]interface{})["name"])
	assert.Len(t, body["transcript"], 1)

	path := "/api/sessions/" + id
	for i, q := range questionnaire.DefaultQuestions() {
		w, body = do(t, router, http.MethodPost, path+"/answers", toJSON(t, map[string]string{"answer": fullAnswers[q.Name]}))
		require.Equal(t, http.StatusOK, w.Code, q.Name)
		assert.Equal(t, float64(i+1), body["step"])
	}

	assert.Equal(t, true, body["complete"])
	assert.Nil(t, body["question"])
	result := body["result"].(map[string]interface{})
	assert.Equal(t, "Positive", result["outcome"])
	transcript := body["transcript"].([]interface{})
	assert.Equal(t, "Confidence: 73.11%", transcript[len(transcript)-1].(map[string]interface{})["text"])

	w, body = do(t, router, http.MethodPost, path+"/answers", `{"answer":"Yes"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict", body["category"])

	w, body = do(t, router, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Positive", body["result"].(map[string]interface{})["outcome"])

	w, body = do(t, router, http.MethodPost, path+"/restart", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, body["id"])
	assert.Equal(t, 0.0, body["step"])
	assert.Nil(t, body["result"])

	w, _ = do(t, router, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, body = do(t, router, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", body["category"])
}

func TestSession_InvalidAnswer(t *testing.T) {
	router := newRouter(t, nil, nil)
	_, body := do(t, router, http.MethodPost, "/api/sessions", `{"kind":"steps"}`)
	path := "/api/sessions/" + body["id"].(string)

	w, body := do(t, router, http.MethodPost, path+"/answers", `{"answer":"Sometimes"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation", body["category"])
	assert.Equal(t, "Fever", body["details"].(map[string]interface{})["field"])

	_, body = do(t, router, http.MethodGet, path, "")
	assert.Equal(t, 0.0, body["step"])
}

func TestSession_AnswerForPassedQuestion(t *testing.T) {
	router := newRouter(t, nil, nil)
	_, body := do(t, router, http.MethodPost, "/api/sessions", `{"kind":"steps"}`)
	path := "/api/sessions/" + body["id"].(string)

	tests := []struct {
		name     string
		body     string
		expected int
		step     float64
	}{
		{name: "first submit", body: `{"question":"Fever","answer":"Yes"}`, expected: http.StatusOK, step: 1},
		{name: "repeated submit", body: `{"question":"Fever","answer":"Yes"}`, expected: http.StatusConflict, step: 1},
		{name: "current question", body: `{"question":"Cough","answer":"No"}`, expected: http.StatusOK, step: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := do(t, router, http.MethodPost, path+"/answers", tt.body)
			assert.Equal(t, tt.expected, w.Code)
			if tt.expected == http.StatusConflict {
				assert.Equal(t, "conflict", body["category"])
			}

			_, body = do(t, router, http.MethodGet, path, "")
			assert.Equal(t, tt.step, body["step"])
		})
	}

	_, body = do(t, router, http.MethodGet, path, "")
	assert.Equal(t, map[string]interface{}{"Fever": "Yes", "Cough": "No"}, body["responses"])
}

func TestSession_SubmitAll(t *testing.T) {
	router := newRouter(t, nil, nil)
	_, body := do(t, router, http.MethodPost, "/api/sessions", `{"kind":"form"}`)
	path := "/api/sessions/" + body["id"].(string)

	w, body := do(t, router, http.MethodPost, path+"/answers", toJSON(t, map[string]interface{}{"answers": fullAnswers}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["complete"])
	assert.Nil(t, body["transcript"])
	assert.Equal(t, "Positive", body["result"].(map[string]interface{})["outcome"])

	w, _ = do(t, router, http.MethodPost, path+"/answers", toJSON(t, map[string]interface{}{"answers": fullAnswers}))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSession_TextCleaner(t *testing.T) {
	reject := func(s string) (string, error) {
		if strings.Contains(s, "<") {
			return "", errors.New("input contains suspicious patterns")
		}
		return strings.TrimSpace(s), nil
	}
	router := newRouter(t, nil, reject)
	_, body := do(t, router, http.MethodPost, "/api/sessions", `{"kind":"form"}`)
	path := "/api/sessions/" + body["id"].(string)

	answers := map[string]string{}
	for k, v := range fullAnswers {
		answers[k] = v
	}
	answers["Disease"] = "<script>"

	w, body := do(t, router, http.MethodPost, path+"/answers", toJSON(t, map[string]interface{}{"answers": answers}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Disease", body["details"].(map[string]interface{})["field"])
}

func TestSession_BadRequests(t *testing.T) {
	router := newRouter(t, nil, nil)
	_, body := do(t, router, http.MethodPost, "/api/sessions", `{"kind":"chat"}`)
	path := "/api/sessions/" + body["id"].(string)

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		expected int
	}{
		{name: "unknown kind", method: http.MethodPost, path: "/api/sessions", body: `{"kind":"voice"}`, expected: http.StatusBadRequest},
		{name: "missing kind", method: http.MethodPost, path: "/api/sessions", body: `{}`, expected: http.StatusBadRequest},
		{name: "empty answer body", method: http.MethodPost, path: path + "/answers", body: `{}`, expected: http.StatusBadRequest},
		{name: "malformed id", method: http.MethodGet, path: "/api/sessions/not-a-uuid", expected: http.StatusNotFound},
		{name: "unknown id", method: http.MethodPost, path: "/api/sessions/" + session.NewID() + "/answers", body: `{"answer":"Yes"}`, expected: http.StatusNotFound},
		{name: "restart unknown", method: http.MethodPost, path: "/api/sessions/" + session.NewID() + "/restart", expected: http.StatusNotFound},
		{name: "delete unknown", method: http.MethodDelete, path: "/api/sessions/" + session.NewID(), expected: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := do(t, router, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.expected, w.Code)
		})
	}
}
