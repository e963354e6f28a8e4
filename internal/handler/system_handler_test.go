package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedDepth int64

func (d fixedDepth) QueueDepth(context.Context) (int64, error) { return int64(d), nil }

type fixedLive int

func (l fixedLive) LiveCount() int { return int(l) }

func systemRouter(h *SystemHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/status", h.Status)
	return r
}

func TestSystemHandler_Health(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	cases := []struct {
		name   string
		checks map[string]Check
		status int
		want   string
	}{
		{"no dependencies", nil, http.StatusOK, "ok"},
		{"all up", map[string]Check{"postgres": ok, "redis": ok}, http.StatusOK, "ok"},
		{"one down", map[string]Check{"postgres": ok, "redis": down}, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := systemRouter(NewSystemHandler("memory", tc.checks, nil, fixedLive(0), zerolog.Nop()))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tc.status, w.Code)
			var report healthReport
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
			assert.Equal(t, tc.want, report.Status)
			if tc.want == "degraded" {
				assert.Equal(t, "connection refused", report.Checks["redis"])
				assert.Equal(t, "ok", report.Checks["postgres"])
			}
		})
	}
}

func TestSystemHandler_Status(t *testing.T) {
	r := systemRouter(NewSystemHandler("postgres", nil, fixedDepth(12), fixedLive(3), zerolog.Nop()))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data systemStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "postgres", body.Data.StoreDriver)
	assert.Equal(t, 3, body.Data.LiveSessions)
	require.NotNil(t, body.Data.ViolationQueue)
	assert.EqualValues(t, 12, *body.Data.ViolationQueue)
	assert.Positive(t, body.Data.Goroutines)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0m 5s", formatDuration(5*time.Second))
	assert.Equal(t, "2h 3m 0s", formatDuration(2*time.Hour+3*time.Minute))
	assert.Equal(t, "1d 1h 0m 0s", formatDuration(25*time.Hour))
}
