package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// ExamHandler serves exam landing info and cache maintenance.
type ExamHandler struct {
	examService *service.ExamService
	log         zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService, log zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		examService: examService,
		log:         log.With().Str("component", "exam_handler").Logger(),
	}
}

// GetExamInfo godoc
// GET /api/v1/exams/:access_code
// Returns the landing view of an open exam. Questions are never included.
func (h *ExamHandler) GetExamInfo(c *gin.Context) {
	info, err := h.examService.GetInfo(c.Request.Context(), c.Param("access_code"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, info)
}

// RefreshExamCache godoc
// POST /api/v1/admin/cache/exams/:access_code/refresh
func (h *ExamHandler) RefreshExamCache(c *gin.Context) {
	if err := h.examService.RefreshCache(c.Request.Context(), c.Param("access_code")); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"refreshed": true})
}

func (h *ExamHandler) fail(c *gin.Context, err error) {
	status, body := classify(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("Exam request failed")
	}
	response.FailWithFields(c, status, body.Code, body.Fields)
}
