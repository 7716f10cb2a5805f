// Package httpapi exposes the server's JSON-over-HTTP API and serves the
// bundled static client. The API is mounted under /_ so that static paths
// never collide with it.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/soclocker/soclocker/internal/logging"
)

// RouteRegistrar is implemented by components that register routes with the
// server's router.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// Server wraps the HTTP listener, router, and graceful shutdown handling.
type Server struct {
	address   string
	staticDir string
	logger    logging.Logger
	srv       *http.Server
}

// NewServer builds the router (middleware, API routes, static files) and the
// underlying http.Server.
func NewServer(address, staticDir string, logger logging.Logger, registrars ...RouteRegistrar) *Server {
	s := &Server{
		address:   address,
		staticDir: staticDir,
		logger:    logger.With("module", "http_server"),
	}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)
	mux.Use(s.requestLogger)

	mux.Route("/_", func(r chi.Router) {
		for _, registrar := range registrars {
			registrar.RegisterRoutes(r)
		}
	})

	if staticDir != "" {
		mux.Handle("/*", http.FileServer(http.Dir(staticDir)))
	}

	s.srv = &http.Server{
		Addr:         address,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// requestLogger logs one line per request with the chi request id.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info(r.Context(), "request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
		)
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
