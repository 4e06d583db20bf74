package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/cloudtrack/certprep/internal/exam"
	"github.com/cloudtrack/certprep/internal/middleware"
	"github.com/cloudtrack/certprep/internal/model"
	"github.com/cloudtrack/certprep/internal/response"
	"github.com/cloudtrack/certprep/internal/service"
	"github.com/cloudtrack/certprep/internal/validator"
)

// SessionHandler drives the caller's exam session.
type SessionHandler struct {
	sessions *service.ExamSessionService
	log      zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *service.ExamSessionService, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		log:      log.With().Str("component", "session_handler").Logger(),
	}
}

// StartSession godoc
// POST /api/v1/exams/:exam_id/sessions
// Starts a new attempt, replacing any existing session. Optional
// ?category= and ?difficulty= restrict the question pool.
func (h *SessionHandler) StartSession(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var q model.StartSessionQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.sessions.Start(c.Request.Context(), claims.UserID, c.Param("exam_id"), q.Filter())
	if err != nil {
		h.fail(c, claims.UserID, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"session": model.NewSessionView(sess)})
}

// GetSession godoc
// GET /api/v1/session
func (h *SessionHandler) GetSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	sess, err := h.sessions.State(c.Request.Context(), claims.UserID)
	if err != nil {
		h.fail(c, claims.UserID, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": model.NewSessionView(sess)})
}

// SelectAnswer godoc
// PUT /api/v1/session/answers/:question_id
func (h *SessionHandler) SelectAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.sessions.SelectAnswer(c.Request.Context(), claims.UserID, c.Param("question_id"), *req.OptionIndex)
	if err != nil {
		h.fail(c, claims.UserID, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": model.NewSessionView(sess)})
}

// ToggleFlag godoc
// POST /api/v1/session/flags/:question_id
func (h *SessionHandler) ToggleFlag(c *gin.Context) {
	claims := middleware.GetClaims(c)
	questionID := c.Param("question_id")

	sess, err := h.sessions.ToggleFlag(c.Request.Context(), claims.UserID, questionID)
	if err != nil {
		h.fail(c, claims.UserID, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"question_id": questionID,
		"flagged":     sess.Flagged(questionID),
		"session":     model.NewSessionView(sess),
	})
}

// Navigate godoc
// POST /api/v1/session/navigate
// Moves the cursor; out-of-range indexes are clamped.
func (h *SessionHandler) Navigate(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.sessions.GoTo(c.Request.Context(), claims.UserID, *req.Index)
	if err != nil {
		h.fail(c, claims.UserID, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": model.NewSessionView(sess)})
}

// FinishSession godoc
// POST /api/v1/session/finish
func (h *SessionHandler) FinishSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	sess, err := h.sessions.Finish(c.Request.Context(), claims.UserID)
	if err != nil {
		h.fail(c, claims.UserID, err)
		return
	}

	report, err := sess.Score()
	if err != nil {
		h.fail(c, claims.UserID, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"session": model.NewSessionView(sess),
		"score":   report,
	})
}

// GetScore godoc
// GET /api/v1/session/score
func (h *SessionHandler) GetScore(c *gin.Context) {
	claims := middleware.GetClaims(c)
	report, err := h.sessions.Score(c.Request.Context(), claims.UserID)
	if err != nil {
		h.fail(c, claims.UserID, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"score": report})
}

// ResetSession godoc
// DELETE /api/v1/session
func (h *SessionHandler) ResetSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if err := h.sessions.Reset(c.Request.Context(), claims.UserID); err != nil {
		h.fail(c, claims.UserID, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

func (h *SessionHandler) fail(c *gin.Context, userID string, err error) {
	status, code := sessionErrorCode(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("user_id", userID).Str("path", c.FullPath()).Msg("Session request failed")
	}
	response.Fail(c, status, code)
}

// sessionErrorCode maps service and engine errors to an HTTP status and code.
func sessionErrorCode(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		return http.StatusNotFound, response.ErrExamNotFound
	case errors.Is(err, service.ErrNoActiveSession):
		return http.StatusNotFound, response.ErrNoActiveSession
	case errors.Is(err, service.ErrNoQuestions):
		return http.StatusUnprocessableEntity, response.ErrNoQuestions
	case errors.Is(err, exam.ErrInvalidInput):
		return http.StatusBadRequest, response.ErrInvalidInput
	case errors.Is(err, exam.ErrInvalidState):
		return http.StatusConflict, response.ErrInvalidState
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}
