package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"
	"github.com/meirborowski/veriflow/pkg/usecase"
	"github.com/meirborowski/veriflow/pkg/utils/errutil"
	"github.com/meirborowski/veriflow/pkg/utils/logging"
	"github.com/meirborowski/veriflow/pkg/utils/safe"
)

type AuthUseCase = usecase.AuthUseCaseInterface

type Server struct {
	router    *chi.Mux
	authUC    AuthUseCase
	wsHandler http.Handler
}

type Options func(*Server)

// WithAuth enables bearer token validation on the API routes
func WithAuth(authUC AuthUseCase) Options {
	return func(s *Server) {
		s.authUC = authUC
	}
}

// WithWebSocket mounts the realtime gateway at /ws
func WithWebSocket(handler http.Handler) Options {
	return func(s *Server) {
		s.wsHandler = handler
	}
}

func New(uc *usecase.UseCases, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)

	// Pull-style query API. The gateway handles all state changes; these
	// routes only read.
	r.Route("/api", func(r chi.Router) {
		if s.authUC != nil {
			r.Use(authMiddleware(s.authUC))
		}

		r.Get("/releases/{releaseID}/executions", executionHistoryHandler(uc))
		r.Get("/releases/{releaseID}/dashboard", dashboardHandler(uc))
		r.Get("/executions/{executionID}", executionDetailHandler(uc))
	})

	// Realtime gateway does its own credential handling before upgrade
	if s.wsHandler != nil {
		r.Get("/ws", s.wsHandler.ServeHTTP)
	}

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, map[string]string{"status": "ok"})
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func respondJSON(w http.ResponseWriter, r *http.Request, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	safe.Write(r.Context(), w, data)
}
