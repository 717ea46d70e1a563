package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kozaktomas/photo-fingerprint/internal/database"
	"github.com/kozaktomas/photo-fingerprint/internal/fingerprint"
	"github.com/kozaktomas/photo-fingerprint/internal/web/handlers"
	"github.com/kozaktomas/photo-fingerprint/internal/web/middleware"
)

// Options configures the web server
type Options struct {
	Host           string
	Port           int
	Fingerprint    fingerprint.Options
	Algorithm      fingerprint.Algorithm     // default for /fingerprints, and the algorithm of the search index
	Reader         database.FingerprintReader // nil disables /search
	AllowedOrigins string                     // comma-separated CORS origins
}

// Server represents the web server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer creates a new web server
func NewServer(opts Options, logger *zap.Logger) (*Server, error) {
	fingerprintsHandler, err := handlers.NewFingerprintsHandler(opts.Fingerprint, opts.Algorithm, logger)
	if err != nil {
		return nil, err
	}
	searchHandler, err := handlers.NewSearchHandler(fingerprintsHandler, opts.Reader, opts.Algorithm, logger)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	s := &Server{
		router: r,
		logger: logger,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(time.Minute))
	r.Use(middleware.CORS(middleware.ParseOrigins(opts.AllowedOrigins)))

	s.setupRoutes(fingerprintsHandler, searchHandler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute, // large uploads
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting web server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down web server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
