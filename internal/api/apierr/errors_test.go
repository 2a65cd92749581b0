package apierr

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/holdem-lobby/internal/model"
	"github.com/mcoot/holdem-lobby/internal/services/auth"
)

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"missing token", auth.ErrMissingToken, http.StatusUnauthorized, CodeUnauthorized},
		{"invalid token", auth.ErrInvalidToken, http.StatusUnauthorized, CodeUnauthorized},
		{"bad credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized, CodeInvalidCredentials},
		{"unverified", auth.ErrUnverified, http.StatusUnauthorized, CodeUnverified},
		{"username taken", auth.ErrUsernameExists, http.StatusConflict, CodeUsernameExists},
		{"unknown session", model.ErrSessionNotFound, http.StatusNotFound, CodeSessionNotFound},
		{"wrapped unknown session", fmt.Errorf("lookup: %w", model.ErrSessionNotFound), http.StatusNotFound, CodeSessionNotFound},
		{"outsider", model.ErrNotAMember, http.StatusForbidden, CodeNotAMember},
		{"wrong phase", model.ErrInvalidState, http.StatusConflict, CodeInvalidState},
		{"bad delay", model.ErrInvalidDelay, http.StatusBadRequest, CodeInvalidRequest},
		{"collision", model.ErrCollision, http.StatusServiceUnavailable, CodeCollision},
		{"explicit bad request", NewInvalidRequestError("nope"), http.StatusBadRequest, CodeInvalidRequest},
		{"anything else", fmt.Errorf("boom"), http.StatusInternalServerError, CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Error.Code)
			assert.NotEmpty(t, body.Error.Message)
			assert.Equal(t, tt.status, Status(tt.err))
		})
	}
}
