package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/store"
)

func examRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mem := store.NewMemory()
	mem.PutExam(&model.Exam{Title: "Math", AccessCode: "MATH-9", TimeLimit: 45, Status: model.ExamStatusActive},
		[]model.Question{{QuestionText: "1+1", Options: []string{"2", "3"}, Answer: 0}})

	h := NewExamHandler(service.NewExamService(mem, zerolog.Nop()), zerolog.Nop())
	r := gin.New()
	r.Use(response.RequestIDMiddleware())
	r.GET("/exams/:access_code", h.GetExamInfo)
	r.POST("/cache/exams/:access_code/refresh", h.RefreshExamCache)
	return r
}

func TestExamHandler_GetExamInfo(t *testing.T) {
	r := examRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/exams/math-9", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data     model.ExamInfo    `json:"data"`
		Metadata response.Metadata `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Math", body.Data.Title)
	assert.Equal(t, 1, body.Data.QuestionCount)
	assert.NotEmpty(t, body.Metadata.RequestID)
	assert.NotContains(t, w.Body.String(), "MATH-9")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/exams/other", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExamHandler_RefreshWithoutCache(t *testing.T) {
	r := examRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cache/exams/MATH-9/refresh", nil))
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}
