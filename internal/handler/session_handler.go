package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// SessionHandler exposes stored session records to the reporting subsystem.
type SessionHandler struct {
	sessions *service.SessionService
	log      zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *service.SessionService, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		log:      log.With().Str("component", "session_handler").Logger(),
	}
}

// GetSession godoc
// GET /api/v1/admin/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sess, err := h.sessions.GetSession(c.Request.Context(), id)
	if err != nil {
		status, body := classify(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Str("session_id", id.String()).Msg("Session lookup failed")
		}
		response.Fail(c, status, body.Code)
		return
	}

	_, live := h.sessions.Live(id)
	response.Success(c, http.StatusOK, gin.H{"session": sess, "live": live})
}
