package handler

import (
	"errors"
	"net/http"

	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/session"
)

// classify maps a domain error to its HTTP status and client-facing body.
func classify(err error) (int, *response.ErrorBody) {
	var verr *session.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, response.Error(response.ErrValidation, verr.Fields)
	case errors.Is(err, session.ErrNotFound), errors.Is(err, service.ErrExamNotFound),
		errors.Is(err, service.ErrExamNotAvailable):
		return http.StatusNotFound, response.Error(response.ErrExamNotFound, nil)
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, response.Error(response.ErrSessionNotFound, nil)
	case errors.Is(err, session.ErrTerminalConflict):
		return http.StatusConflict, response.Error(response.ErrSessionTerminal, nil)
	case errors.Is(err, session.ErrInvalidState):
		return http.StatusConflict, response.Error(response.ErrInvalidState, nil)
	case errors.Is(err, session.ErrOutOfRange):
		return http.StatusBadRequest, response.Error(response.ErrOutOfRange, nil)
	case errors.Is(err, session.ErrFatalStore):
		return http.StatusServiceUnavailable, response.Error(response.ErrSubmitFailed, nil)
	case errors.Is(err, session.ErrTransientStore):
		return http.StatusServiceUnavailable, response.Error(response.ErrStoreUnavailable, nil)
	case errors.Is(err, service.ErrCacheUnsupported):
		return http.StatusNotImplemented, response.Error(response.ErrCacheUnsupported, nil)
	default:
		return http.StatusInternalServerError, response.Error(response.ErrInternal, nil)
	}
}
