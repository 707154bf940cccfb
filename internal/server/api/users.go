package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ayusman/mukha/internal/app"
	"github.com/ayusman/mukha/internal/store"
)

// Registrar enrolls a new user from the camera.
type Registrar interface {
	Register(ctx context.Context, name string) (*store.User, error)
}

// UserHandler handles HTTP requests for enrolled users.
type UserHandler struct {
	store     *store.Store
	registrar Registrar
	log       *zap.Logger
}

// NewUserHandler creates a UserHandler. Without a registrar POST returns 503.
func NewUserHandler(s *store.Store, registrar Registrar, log *zap.Logger) *UserHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserHandler{store: s, registrar: registrar, log: log}
}

// Routes mounts the handler on a router.
func (h *UserHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.register)
	r.Get("/{name}", h.get)
	r.Delete("/{name}", h.delete)
}

type registerRequest struct {
	Name string `json:"name"`
}

type userResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Samples        int    `json:"samples"`
	WithGlasses    int    `json:"with_glasses"`
	WithFacialHair int    `json:"with_facial_hair"`
	CreatedAt      string `json:"created_at"`
	LastUpdated    string `json:"last_updated"`
}

type listUsersResponse struct {
	Users []userResponse `json:"users"`
}

type duplicateResponse struct {
	Error      string  `json:"error"`
	User       string  `json:"user"`
	Similarity float64 `json:"similarity"`
}

// toUserResponse summarizes a profile without its embeddings.
func toUserResponse(u *store.User) userResponse {
	return userResponse{
		ID:             u.ID,
		Name:           u.Name,
		Samples:        len(u.Embeddings),
		WithGlasses:    count(u.HasGlasses),
		WithFacialHair: count(u.HasFacialHair),
		CreatedAt:      u.CreatedAt.Format(time.RFC3339),
		LastUpdated:    u.LastUpdated.Format(time.RFC3339),
	}
}

func count(flags []bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

// list handles GET /api/users.
func (h *UserHandler) list(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.Users().List()
	if err != nil {
		h.log.Error("list users", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to list users")
		return
	}

	response := listUsersResponse{Users: make([]userResponse, 0, len(users))}
	for _, u := range users {
		response.Users = append(response.Users, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/users/{name}.
func (h *UserHandler) get(w http.ResponseWriter, r *http.Request) {
	u, err := h.store.Users().GetByName(chi.URLParam(r, "name"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get user")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// delete handles DELETE /api/users/{name}.
func (h *UserHandler) delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.store.Users().Delete(name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete user")
		return
	}
	h.log.Info("user deleted", zap.String("user", name))
	w.WriteHeader(http.StatusNoContent)
}

// register handles POST /api/users. It blocks until the capture finishes.
func (h *UserHandler) register(w http.ResponseWriter, r *http.Request) {
	if h.registrar == nil {
		writeError(w, http.StatusServiceUnavailable, "Registration is not available")
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	u, err := h.registrar.Register(r.Context(), req.Name)
	if err != nil {
		var dup *app.DuplicateIdentityError
		if errors.As(err, &dup) {
			writeJSON(w, http.StatusConflict, duplicateResponse{
				Error:      err.Error(),
				User:       dup.User,
				Similarity: dup.Similarity,
			})
			return
		}
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.log.Error("registration failed", zap.String("user", req.Name), zap.Error(err))
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(u))
}
