// Package server provides the HTTP dashboard API: user management,
// authentication, the attempt history and the live capture preview.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ayusman/mukha/internal/app"
	"github.com/ayusman/mukha/internal/server/api"
	"github.com/ayusman/mukha/internal/store"
)

// Flows runs the camera-backed flows. *app.App implements it.
type Flows interface {
	api.Registrar
	api.Authenticator
}

// Config holds the server configuration. Without Flows the registration and
// authentication endpoints answer 503; without Preview the stream and status
// endpoints are not mounted.
type Config struct {
	StaticDir string
	Store     *store.Store
	Flows     Flows
	Preview   *app.Preview
	Logger    *zap.Logger
}

// Server is the HTTP server of the dashboard.
type Server struct {
	config Config
	router *chi.Mux
	log    *zap.Logger
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		config: config,
		router: chi.NewRouter(),
		log:    log,
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	r := s.router
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(requestLogger(s.log))

	r.Get("/api/health", s.handleHealth)

	if s.config.Store != nil {
		var registrar api.Registrar
		if s.config.Flows != nil {
			registrar = s.config.Flows
		}
		r.Route("/api/users", api.NewUserHandler(s.config.Store, registrar, s.log).Routes)
		r.Method(http.MethodGet, "/api/attempts", api.NewAttemptHandler(s.config.Store))
	}

	if s.config.Flows != nil {
		r.Method(http.MethodPost, "/api/authenticate", api.NewAuthHandler(s.config.Flows, s.log))
	} else {
		r.Post("/api/authenticate", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Authentication is not available", http.StatusServiceUnavailable)
		})
	}

	if s.config.Preview != nil {
		r.Method(http.MethodGet, "/api/stream", NewStreamHandler(s.config.Preview))
		r.Method(http.MethodGet, "/api/status", NewStatusHandler(s.config.Preview, s.log))
	}

	if s.config.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Preview != nil {
		response["capturing"] = s.config.Preview.Latest().Active
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("server listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// requestLogger logs one line per request. Long-lived stream and status
// connections are logged when they end.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chiMiddleware.GetReqID(r.Context())),
			)
		})
	}
}
