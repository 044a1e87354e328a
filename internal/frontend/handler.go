package frontend

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ZanzyTHEbar/symptom-checker/internal/errors"
	"github.com/ZanzyTHEbar/symptom-checker/internal/questionnaire"
	"github.com/ZanzyTHEbar/symptom-checker/internal/security"
	"github.com/ZanzyTHEbar/symptom-checker/internal/session"
)

// CookieConfig controls the session cookie of the web flows
type CookieConfig struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

// questionField carries the name of the question a posted answer belongs to
const questionField = "question"

// TextCleaner normalises a free-text answer before it is validated
type TextCleaner func(string) (string, error)

// Handler serves the chat, steps and form pages
type Handler struct {
	manager *session.Manager
	pages   *Pages
	cookie  CookieConfig
	clean   TextCleaner
}

// NewHandler creates the web flow handler. clean may be nil.
func NewHandler(manager *session.Manager, pages *Pages, cookie CookieConfig, clean TextCleaner) *Handler {
	if clean == nil {
		clean = func(s string) (string, error) { return s, nil }
	}
	return &Handler{manager: manager, pages: pages, cookie: cookie, clean: clean}
}

// Register mounts the page routes. answerMiddleware runs before every handler that accepts answers.
func (h *Handler) Register(r gin.IRouter, answerMiddleware ...gin.HandlerFunc) {
	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/chat")
	})

	for _, kind := range []questionnaire.Kind{questionnaire.KindChat, questionnaire.KindSteps} {
		base := "/" + string(kind)
		r.GET(base, h.show(kind))
		r.POST(base+"/answer", chain(answerMiddleware, h.answer(kind))...)
		r.POST(base+"/restart", h.restart(kind))
	}

	r.GET("/form", h.show(questionnaire.KindForm))
	r.POST("/form", chain(answerMiddleware, h.submitForm)...)
}

func chain(middleware []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	handlers := make([]gin.HandlerFunc, 0, len(middleware)+1)
	handlers = append(handlers, middleware...)
	return append(handlers, handler)
}

func (h *Handler) cookieName(kind questionnaire.Kind) string {
	return h.cookie.Name + "_" + string(kind)
}

// SessionID returns the session cookie of the flow the request path belongs to
func (h *Handler) SessionID(c *gin.Context) string {
	segment := strings.SplitN(strings.TrimPrefix(c.Request.URL.Path, "/"), "/", 2)[0]
	kind := questionnaire.Kind(segment)
	if !kind.Valid() {
		return ""
	}
	id, err := c.Cookie(h.cookieName(kind))
	if err != nil || !session.ValidID(id) {
		return ""
	}
	return id
}

// current loads the session named by the flow cookie, starting a new one when it is missing or expired
func (h *Handler) current(c *gin.Context, kind questionnaire.Kind) (*session.State, error) {
	ctx := c.Request.Context()
	if id, err := c.Cookie(h.cookieName(kind)); err == nil {
		state, err := h.manager.Get(ctx, id)
		if err == nil && state.Progress.Kind == kind {
			return state, nil
		}
		if err != nil && !errors.Is(err, session.ErrNotFound) {
			return nil, err
		}
	}

	state, err := h.manager.Start(ctx, kind)
	if err != nil {
		return nil, err
	}
	h.setCookie(c, kind, state.ID)
	return state, nil
}

func (h *Handler) setCookie(c *gin.Context, kind questionnaire.Kind, id string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName(kind), id, int(h.cookie.MaxAge.Seconds()), "/", "", h.cookie.Secure, true)
}

func (h *Handler) show(kind questionnaire.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := h.current(c, kind)
		if err != nil {
			h.fail(c, kind, err)
			return
		}
		h.render(c, http.StatusOK, kind, state, "", nil)
	}
}

func (h *Handler) answer(kind questionnaire.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := h.current(c, kind)
		if err != nil {
			h.fail(c, kind, err)
			return
		}

		// the form names the question it was rendered for
		name := c.PostForm(questionField)
		if name == "" {
			current, ok := h.manager.Flow().Current(state.Progress)
			if !ok {
				c.Redirect(http.StatusSeeOther, "/"+string(kind))
				return
			}
			name = current.Name
		}

		raw := c.PostForm(name)
		if q, ok := h.manager.Flow().Lookup(name); ok && q.Domain == questionnaire.DomainText {
			if raw, err = h.clean(raw); err != nil {
				h.render(c, http.StatusBadRequest, kind, state, q.Name+": "+err.Error(), nil)
				return
			}
		}

		next, err := h.manager.Answer(c.Request.Context(), state.ID, name, raw)
		// a repeated submit of an answered page just shows the current one
		if err != nil && !errors.Is(err, session.ErrStaleAnswer) && !errors.Is(err, questionnaire.ErrComplete) {
			h.answerFailed(c, kind, next, err, nil)
			return
		}
		c.Redirect(http.StatusSeeOther, "/"+string(kind))
	}
}

func (h *Handler) restart(kind questionnaire.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := h.current(c, kind)
		if err != nil {
			h.fail(c, kind, err)
			return
		}
		if _, err := h.manager.Restart(c.Request.Context(), state.ID); err != nil {
			h.fail(c, kind, err)
			return
		}
		c.Redirect(http.StatusSeeOther, "/"+string(kind))
	}
}

func (h *Handler) submitForm(c *gin.Context) {
	kind := questionnaire.KindForm
	state, err := h.current(c, kind)
	if err != nil {
		h.fail(c, kind, err)
		return
	}

	answers := make(map[string]string)
	for _, q := range h.manager.Flow().Questions() {
		raw := c.PostForm(q.Name)
		if q.Domain == questionnaire.DomainText {
			if raw, err = h.clean(raw); err != nil {
				h.render(c, http.StatusBadRequest, kind, state, q.Name+": "+err.Error(), answers)
				return
			}
		}
		answers[q.Name] = raw
	}

	ctx := c.Request.Context()
	// every submit is a fresh assessment
	if h.manager.Flow().Complete(state.Progress) {
		if state, err = h.manager.Restart(ctx, state.ID); err != nil {
			h.fail(c, kind, err)
			return
		}
	}

	next, err := h.manager.Submit(ctx, state.ID, answers)
	if err != nil {
		h.answerFailed(c, kind, next, err, answers)
		return
	}
	h.render(c, http.StatusOK, kind, next, "", answers)
}

// answerFailed re-renders the page with the rejection; state is the unchanged session
func (h *Handler) answerFailed(c *gin.Context, kind questionnaire.Kind, state *session.State, err error, values map[string]string) {
	var answerErr *questionnaire.AnswerError
	if errors.As(err, &answerErr) && state != nil {
		h.render(c, http.StatusBadRequest, kind, state, answerErr.Reason, values)
		return
	}
	h.fail(c, kind, err)
}

// fail renders a page carrying only the error message
func (h *Handler) fail(c *gin.Context, kind questionnaire.Kind, err error) {
	if errors.Is(err, session.ErrNotFound) {
		err = apperrors.NewNotFoundError("session", "")
	}
	appErr := apperrors.ToAppError(err)
	apperrors.LogError(c, appErr)

	data := newView(kind, security.GetNonce(c))
	data.Error = appErr.ErrBuilder.Msg
	if renderErr := h.pages.Render(c, appErr.HTTPStatus, kind, data); renderErr != nil {
		slog.Error("Failed to render error page", "error", renderErr)
		c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.Response())
	}
}

func (h *Handler) render(c *gin.Context, status int, kind questionnaire.Kind, state *session.State, message string, values map[string]string) {
	flow := h.manager.Flow()
	data := newView(kind, security.GetNonce(c))
	data.Error = message
	data.Transcript = state.Progress.Transcript
	data.Total = flow.Len()
	data.Result = state.Result
	if state.Result != nil {
		data.Confidence = questionnaire.FormatConfidence(state.Result.Confidence)
	}

	if kind == questionnaire.KindForm {
		for _, q := range flow.Questions() {
			value := values[q.Name]
			if values == nil {
				value, _ = state.Progress.Responses.Get(q.Name)
			}
			data.Questions = append(data.Questions, newQuestionView(q, value))
		}
	} else if q, ok := flow.Current(state.Progress); ok {
		qv := newQuestionView(q, "")
		data.Question = &qv
		data.Number = state.Progress.Step + 1
	}

	if err := h.pages.Render(c, status, kind, data); err != nil {
		slog.Error("Failed to render page", "flow", kind, "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to render page"})
	}
}
