package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/imgfit/imgfit/internal/config"
	"github.com/imgfit/imgfit/internal/httputil"
	"github.com/imgfit/imgfit/internal/metrics"
	"github.com/imgfit/imgfit/internal/origin"
	"github.com/imgfit/imgfit/internal/scaler"
)

// Server is the main HTTP server for imgfit.
type Server struct {
	cfg    *config.Config
	router *chi.Mux
	http   *http.Server
	logger *slog.Logger
}

// New creates a new Server with middleware and routes configured. Images
// are served from backend under cfg.Server.Prefix, with scaled variants
// produced by mw.
func New(cfg *config.Config, logger *slog.Logger, mw *scaler.Middleware, backend origin.Backend) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	s := &Server{
		cfg:    cfg,
		router: r,
		logger: logger,
	}

	r.Get("/health", s.handleHealth)
	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	images := mw.Handler(origin.NewHandler(backend, logger))
	prefix := strings.TrimSuffix(cfg.Server.Prefix, "/")
	if prefix == "" {
		r.Handle("/*", images)
	} else {
		r.Handle(prefix+"/*", http.StripPrefix(prefix, images))
	}

	return s
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.http = s.newHTTPServer()

	s.logger.Info("server starting", "address", s.cfg.Address(), "prefix", s.cfg.Server.Prefix)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartWithReady begins listening. It closes the ready channel once the
// listener is bound, then blocks serving requests.
func (s *Server) StartWithReady(ready chan<- struct{}) error {
	s.http = s.newHTTPServer()

	ln, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.logger.Info("server starting", "address", s.cfg.Address(), "prefix", s.cfg.Server.Prefix)
	close(ready)

	if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *Server) newHTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Address(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	timeout := time.Duration(s.cfg.Server.ShutdownTimeout) * time.Second
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.logger.Info("shutting down server", "timeout", timeout)
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
