// Package api provides the HTTP handlers for users, authentication and the
// attempt history.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/mukha/internal/app"
	"github.com/ayusman/mukha/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code. The body is
// encoded before the header goes out so an encoding failure becomes a 500.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	if data == nil {
		w.WriteHeader(status)
		return
	}
	body, err := json.Marshal(data)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errorResponse{Error: "encoding response: " + err.Error()})
		return
	}
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusFor maps a flow error to its HTTP status.
func statusFor(err error) int {
	var dup *app.DuplicateIdentityError
	switch {
	case errors.As(err, &dup),
		errors.Is(err, app.ErrSessionActive),
		errors.Is(err, store.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, app.ErrInvalidName), errors.Is(err, store.ErrInvalidProfile):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrCaptureFailed):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
