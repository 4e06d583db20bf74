package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cloudtrack/certprep/internal/response"
	"github.com/cloudtrack/certprep/internal/service"
)

// ExamHandler serves the exam catalog.
type ExamHandler struct {
	catalog *service.CatalogService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(catalog *service.CatalogService) *ExamHandler {
	return &ExamHandler{catalog: catalog}
}

// ListExams godoc
// GET /api/v1/exams
func (h *ExamHandler) ListExams(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"exams": h.catalog.List()})
}

// GetExam godoc
// GET /api/v1/exams/:exam_id
func (h *ExamHandler) GetExam(c *gin.Context) {
	def, err := h.catalog.Get(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrExamNotFound)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": def})
}
