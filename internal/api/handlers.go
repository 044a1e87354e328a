package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ZanzyTHEbar/symptom-checker/internal/errors"
	"github.com/ZanzyTHEbar/symptom-checker/internal/features"
	"github.com/ZanzyTHEbar/symptom-checker/internal/prediction"
	"github.com/ZanzyTHEbar/symptom-checker/internal/questionnaire"
	"github.com/ZanzyTHEbar/symptom-checker/internal/session"
)

// Predictor encodes and classifies answers
type Predictor interface {
	Schema() features.Schema
	Encode(responses questionnaire.ResponseSet) features.FeatureRow
	Assess(ctx context.Context, responses questionnaire.ResponseSet) (prediction.Result, error)
}

// TextCleaner normalises a free-text answer before it is validated
type TextCleaner func(string) (string, error)

// Handler serves the JSON API
type Handler struct {
	predictor Predictor
	manager   *session.Manager
	clean     TextCleaner
}

// NewHandler creates the API handler. clean may be nil.
func NewHandler(predictor Predictor, manager *session.Manager, clean TextCleaner) *Handler {
	if clean == nil {
		clean = func(s string) (string, error) { return s, nil }
	}
	return &Handler{predictor: predictor, manager: manager, clean: clean}
}

// Register mounts the API under r. answerMiddleware runs before the answer handler.
func (h *Handler) Register(r gin.IRouter, answerMiddleware ...gin.HandlerFunc) {
	r.GET("/questions", h.ListQuestions)
	r.GET("/schema", h.GetSchema)
	r.POST("/encode", h.Encode)
	r.POST("/predict", h.Predict)

	sessions := r.Group("/sessions")
	sessions.POST("", h.CreateSession)
	sessions.GET("/:id", h.GetSession)
	sessions.DELETE("/:id", h.DeleteSession)
	sessions.POST("/:id/restart", h.RestartSession)

	handlers := make([]gin.HandlerFunc, 0, len(answerMiddleware)+1)
	handlers = append(handlers, answerMiddleware...)
	sessions.POST("/:id/answers", append(handlers, h.AnswerSession)...)
}

// QuestionsResponse lists the questionnaire in asking order
type QuestionsResponse struct {
	Questions []questionnaire.Question `json:"questions"`
}

// SchemaResponse is the classifier's column order
type SchemaResponse struct {
	Columns []string `json:"columns"`
}

// EncodeResponse carries the feature row built from the answers
type EncodeResponse struct {
	Features features.FeatureRow `json:"features"`
}

// CreateSessionRequest starts a questionnaire session
type CreateSessionRequest struct {
	Kind string `json:"kind" binding:"required,oneof=chat steps form" example:"chat"`
}

// AnswerRequest carries either one answer for the current question or a map of answers for every question.
// Question optionally names the question Answer is for; a session that has moved past it answers 409.
type AnswerRequest struct {
	Question string            `json:"question,omitempty" example:"Fever"`
	Answer   *string           `json:"answer,omitempty" example:"Yes"`
	Answers  map[string]string `json:"answers,omitempty"`
}

// SessionResponse is the public view of a session
type SessionResponse struct {
	ID         string                    `json:"id"`
	Kind       questionnaire.Kind        `json:"kind"`
	Step       int                       `json:"step"`
	Total      int                       `json:"total"`
	Complete   bool                      `json:"complete"`
	Question   *questionnaire.Question   `json:"question,omitempty"`
	Responses  questionnaire.ResponseSet `json:"responses"`
	Transcript []questionnaire.Message   `json:"transcript,omitempty"`
	Result     *prediction.Result        `json:"result,omitempty"`
}

func (h *Handler) sessionResponse(state *session.State) SessionResponse {
	flow := h.manager.Flow()
	resp := SessionResponse{
		ID:         state.ID,
		Kind:       state.Progress.Kind,
		Step:       state.Progress.Step,
		Total:      flow.Len(),
		Complete:   flow.Complete(state.Progress),
		Responses:  state.Progress.Responses,
		Transcript: state.Progress.Transcript,
		Result:     state.Result,
	}
	if q, ok := flow.Current(state.Progress); ok {
		resp.Question = &q
	}
	return resp
}

// ListQuestions godoc
// @Summary      List questions
// @Description  Returns the questionnaire catalogue in asking order
// @Tags         questionnaire
// @Produce      json
// @Success      200  {object}  QuestionsResponse
// @Router       /api/questions [get]
func (h *Handler) ListQuestions(c *gin.Context) {
	c.JSON(http.StatusOK, QuestionsResponse{Questions: h.manager.Flow().Questions()})
}

// GetSchema godoc
// @Summary      Model columns
// @Description  Returns the ordered feature columns the classifier expects
// @Tags         prediction
// @Produce      json
// @Success      200  {object}  SchemaResponse
// @Router       /api/schema [get]
func (h *Handler) GetSchema(c *gin.Context) {
	c.JSON(http.StatusOK, SchemaResponse{Columns: h.predictor.Schema()})
}

// Encode godoc
// @Summary      Encode answers
// @Description  Builds the feature row for a set of answers without predicting. Missing or unrecognised answers encode as 0.
// @Tags         prediction
// @Accept       json
// @Produce      json
// @Param        answers  body      map[string]string  true  "question name to answer"
// @Success      200      {object}  EncodeResponse
// @Failure      400      {object}  apperrors.ErrorResponse
// @Router       /api/encode [post]
func (h *Handler) Encode(c *gin.Context) {
	responses, ok := h.bindResponses(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, EncodeResponse{Features: h.predictor.Encode(responses)})
}

// Predict godoc
// @Summary      Predict outcome
// @Description  Encodes the answers and asks the classifier for an outcome and confidence
// @Tags         prediction
// @Accept       json
// @Produce      json
// @Param        answers  body      map[string]string  true  "question name to answer"
// @Success      200      {object}  prediction.Result
// @Failure      400      {object}  apperrors.ErrorResponse
// @Failure      502      {object}  apperrors.ErrorResponse
// @Router       /api/predict [post]
func (h *Handler) Predict(c *gin.Context) {
	responses, ok := h.bindResponses(c)
	if !ok {
		return
	}
	result, err := h.predictor.Assess(c.Request.Context(), responses)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) bindResponses(c *gin.Context) (questionnaire.ResponseSet, bool) {
	var responses questionnaire.ResponseSet
	if err := c.ShouldBindJSON(&responses); err != nil {
		apperrors.Respond(c, apperrors.NewValidationError("request body must be a JSON object of answers", err.Error()))
		return questionnaire.ResponseSet{}, false
	}
	return responses, true
}

// CreateSession godoc
// @Summary      Start a session
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        request  body      CreateSessionRequest  true  "flow kind"
// @Success      201      {object}  SessionResponse
// @Failure      400      {object}  apperrors.ErrorResponse
// @Router       /api/sessions [post]
func (h *Handler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(c, apperrors.NewFieldValidationError("kind", "kind must be one of chat, steps, form"))
		return
	}
	state, err := h.manager.Start(c.Request.Context(), questionnaire.Kind(req.Kind))
	if err != nil {
		h.respondSessionError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.sessionResponse(state))
}

// GetSession godoc
// @Summary      Get a session
// @Tags         sessions
// @Produce      json
// @Param        id   path      string  true  "session id"
// @Success      200  {object}  SessionResponse
// @Failure      404  {object}  apperrors.ErrorResponse
// @Router       /api/sessions/{id} [get]
func (h *Handler) GetSession(c *gin.Context) {
	state, err := h.manager.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessionResponse(state))
}

// AnswerSession godoc
// @Summary      Answer questions
// @Description  Send "answer" to answer the current question, or "answers" to fill every remaining question at once.
// @Description  Completing the questionnaire runs the prediction once.
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        id       path      string         true  "session id"
// @Param        request  body      AnswerRequest  true  "answer or answers"
// @Success      200      {object}  SessionResponse
// @Failure      400      {object}  apperrors.ErrorResponse
// @Failure      404      {object}  apperrors.ErrorResponse
// @Failure      409      {object}  apperrors.ErrorResponse
// @Failure      502      {object}  apperrors.ErrorResponse
// @Router       /api/sessions/{id}/answers [post]
func (h *Handler) AnswerSession(c *gin.Context) {
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.Answer == nil && req.Answers == nil) {
		apperrors.Respond(c, apperrors.NewValidationError(`request body must contain "answer" or "answers"`))
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")

	var (
		state *session.State
		err   error
	)
	if req.Answer != nil {
		state, err = h.answerOne(ctx, id, req.Question, *req.Answer)
	} else {
		state, err = h.answerAll(ctx, id, req.Answers)
	}
	if err != nil {
		h.respondSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessionResponse(state))
}

func (h *Handler) answerOne(ctx context.Context, id, question, raw string) (*session.State, error) {
	if question == "" {
		state, err := h.manager.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		q, ok := h.manager.Flow().Current(state.Progress)
		if !ok {
			return nil, questionnaire.ErrComplete
		}
		question = q.Name
	}
	if q, ok := h.manager.Flow().Lookup(question); ok && q.Domain == questionnaire.DomainText {
		var err error
		if raw, err = h.clean(raw); err != nil {
			return nil, &questionnaire.AnswerError{Question: q.Name, Reason: err.Error()}
		}
	}
	return h.manager.Answer(ctx, id, question, raw)
}

func (h *Handler) answerAll(ctx context.Context, id string, answers map[string]string) (*session.State, error) {
	cleaned := make(map[string]string, len(answers))
	for name, raw := range answers {
		if q, ok := h.manager.Flow().Lookup(name); ok && q.Domain == questionnaire.DomainText {
			value, err := h.clean(raw)
			if err != nil {
				return nil, &questionnaire.AnswerError{Question: q.Name, Reason: err.Error()}
			}
			raw = value
		}
		cleaned[name] = raw
	}
	return h.manager.Submit(ctx, id, cleaned)
}

// RestartSession godoc
// @Summary      Restart a session
// @Description  Clears answers, transcript and result; the session id is kept
// @Tags         sessions
// @Produce      json
// @Param        id   path      string  true  "session id"
// @Success      200  {object}  SessionResponse
// @Failure      404  {object}  apperrors.ErrorResponse
// @Router       /api/sessions/{id}/restart [post]
func (h *Handler) RestartSession(c *gin.Context) {
	state, err := h.manager.Restart(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessionResponse(state))
}

// DeleteSession godoc
// @Summary      Delete a session
// @Tags         sessions
// @Param        id  path  string  true  "session id"
// @Success      204
// @Failure      404  {object}  apperrors.ErrorResponse
// @Router       /api/sessions/{id} [delete]
func (h *Handler) DeleteSession(c *gin.Context) {
	if err := h.manager.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondSessionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) respondSessionError(c *gin.Context, err error) {
	var answerErr *questionnaire.AnswerError
	switch {
	case errors.As(err, &answerErr):
		err = apperrors.NewFieldValidationError(answerErr.Question, answerErr.Reason)
	case errors.Is(err, session.ErrNotFound):
		err = apperrors.NewNotFoundError("session", c.Param("id"))
	case errors.Is(err, questionnaire.ErrComplete), errors.Is(err, session.ErrStaleAnswer):
		err = apperrors.NewConflictError(err.Error())
	}
	apperrors.Respond(c, err)
}
