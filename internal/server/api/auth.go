package api

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/ayusman/mukha/internal/app"
)

// Authenticator runs an authentication session.
type Authenticator interface {
	Authenticate(ctx context.Context) (app.AuthResult, error)
}

// AuthHandler handles POST /api/authenticate.
type AuthHandler struct {
	auth Authenticator
	log  *zap.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(auth Authenticator, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{auth: auth, log: log}
}

// ServeHTTP runs one session and answers with its result. A rejection is
// still a 200; only a busy camera or a failure to run the session is an error.
func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res, err := h.auth.Authenticate(r.Context())
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.log.Error("authentication failed", zap.Error(err))
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}
