package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/session"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   response.ErrCode
	}{
		{&session.ValidationError{Fields: map[string]string{"email": "bad"}}, http.StatusUnprocessableEntity, response.ErrValidation},
		{session.ErrNotFound, http.StatusNotFound, response.ErrExamNotFound},
		{service.ErrExamNotAvailable, http.StatusNotFound, response.ErrExamNotFound},
		{service.ErrSessionNotFound, http.StatusNotFound, response.ErrSessionNotFound},
		{session.ErrTerminalConflict, http.StatusConflict, response.ErrSessionTerminal},
		{fmt.Errorf("navigate: %w", session.ErrInvalidState), http.StatusConflict, response.ErrInvalidState},
		{session.ErrOutOfRange, http.StatusBadRequest, response.ErrOutOfRange},
		{session.ErrFatalStore, http.StatusServiceUnavailable, response.ErrSubmitFailed},
		{session.ErrTransientStore, http.StatusServiceUnavailable, response.ErrStoreUnavailable},
		{service.ErrCacheUnsupported, http.StatusNotImplemented, response.ErrCacheUnsupported},
		{errors.New("boom"), http.StatusInternalServerError, response.ErrInternal},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			status, body := classify(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, body.Code)
			assert.NotEmpty(t, body.Message)
		})
	}

	_, body := classify(&session.ValidationError{Fields: map[string]string{"email": "bad"}})
	assert.Equal(t, "bad", body.Fields["email"])
}
