package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/cloudtrack/certprep/internal/exam"
	"github.com/cloudtrack/certprep/internal/model"
	"github.com/cloudtrack/certprep/internal/response"
	"github.com/cloudtrack/certprep/internal/service"
	"github.com/cloudtrack/certprep/internal/validator"
)

// QuestionHandler handles question bank administration.
type QuestionHandler struct {
	questions *service.QuestionService
	log       zerolog.Logger
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questions *service.QuestionService, log zerolog.Logger) *QuestionHandler {
	return &QuestionHandler{
		questions: questions,
		log:       log.With().Str("component", "question_handler").Logger(),
	}
}

// GetStats godoc
// GET /api/v1/admin/questions/stats
// Returns the number of questions per category.
func (h *QuestionHandler) GetStats(c *gin.Context) {
	stats, err := h.questions.Stats(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Question stats failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

// ListQuestions godoc
// GET /api/v1/admin/questions?category=&page=&per_page=
// Lists the bank including answer keys.
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	var q model.QuestionListQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questions, pagination, err := h.questions.List(c.Request.Context(), q.Category, q.Page, q.PerPage)
	if err != nil {
		h.log.Error().Err(err).Msg("List questions failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"questions": questions}, pagination)
}

// ImportQuestions godoc
// POST /api/v1/admin/questions/import
// Validates the batch and queues it for the import worker.
func (h *QuestionHandler) ImportQuestions(c *gin.Context) {
	var req model.ImportQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questions := make([]exam.Question, len(req.Questions))
	for i, q := range req.Questions {
		questions[i] = q.ToQuestion()
	}

	ids, err := h.questions.EnqueueImport(c.Request.Context(), questions)
	if err != nil {
		switch {
		case errors.Is(err, exam.ErrInvalidInput):
			response.FailWithDetail(c, http.StatusBadRequest, response.ErrValidation, err.Error())
		case errors.Is(err, exam.ErrInvalidState):
			response.Fail(c, http.StatusConflict, response.ErrInvalidState)
		default:
			h.log.Error().Err(err).Msg("Queue question import failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	h.log.Info().Int("count", len(ids)).Msg("Question import queued")
	response.Success(c, http.StatusAccepted, gin.H{"queued": ids})
}
