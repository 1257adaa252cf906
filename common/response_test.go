package common

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRespondWithAppError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{
			name:   "validation carries field",
			err:    Duplicate("email"),
			status: http.StatusBadRequest,
			body:   `{"error":"email already exists","field":"email"}`,
		},
		{
			name:   "not found",
			err:    NotFound("loan"),
			status: http.StatusNotFound,
			body:   `{"error":"loan not found"}`,
		},
		{
			name:   "unauthorized uses message envelope",
			err:    Unauthorized("Invalid email or password"),
			status: http.StatusUnauthorized,
			body:   `{"message":"Invalid email or password"}`,
		},
		{
			name:   "raw errors are hidden",
			err:    errors.New("mongo: server selection timeout"),
			status: http.StatusInternalServerError,
			body:   `{"error":"internal server error"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondWithAppError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.body, rec.Body.String())
		})
	}
}
