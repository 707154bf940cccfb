package api

import (
	"net/http"
	"strconv"

	"github.com/ayusman/mukha/internal/store"
)

// AttemptHandler serves the authentication history.
type AttemptHandler struct {
	store *store.Store
}

// NewAttemptHandler creates an AttemptHandler.
func NewAttemptHandler(s *store.Store) *AttemptHandler {
	return &AttemptHandler{store: s}
}

type listAttemptsResponse struct {
	Attempts []*store.Attempt `json:"attempts"`
}

// ServeHTTP handles GET /api/attempts?limit=N, newest first.
func (h *AttemptHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	attempts, err := h.store.Attempts().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list attempts")
		return
	}
	if attempts == nil {
		attempts = []*store.Attempt{}
	}
	writeJSON(w, http.StatusOK, listAttemptsResponse{Attempts: attempts})
}
