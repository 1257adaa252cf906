package common

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// MessageResponse is the envelope used for authentication outcomes.
type MessageResponse struct {
	Message string `json:"message"`
}

func RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, ErrorResponse{Error: message})
}

// RespondWithAppError writes err using the taxonomy status. Anything that is
// not a classified error is logged and reported as a generic 500.
func RespondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	code := HTTPStatusFromError(err)
	var appErr *Error
	if code == http.StatusInternalServerError || !errors.As(err, &appErr) {
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"requestId", middleware.GetReqID(r.Context()),
			"error", err,
		)
		RespondWithError(w, http.StatusInternalServerError, ErrInternal.Error())
		return
	}
	if errors.Is(err, ErrUnauthorized) {
		RespondWithJSON(w, code, MessageResponse{Message: appErr.Error()})
		return
	}
	RespondWithJSON(w, code, ErrorResponse{Error: appErr.Error(), Field: appErr.Field})
}
