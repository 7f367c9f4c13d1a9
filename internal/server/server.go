// Package server provides the HTTP API for taxlens.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/taxlens/internal/config"
	"github.com/hyperjump/taxlens/internal/dataset"
	"github.com/hyperjump/taxlens/internal/models"
	"github.com/hyperjump/taxlens/internal/session"
	"github.com/hyperjump/taxlens/pkg/utils"
)

// requestTimeout bounds a whole request; it must exceed the completion timeout plus retries.
const requestTimeout = 120 * time.Second

// Analyzer answers one question within a session.
type Analyzer interface {
	Analyze(ctx context.Context, sess *session.Session, question string) *models.Answer
}

// Dataset is the read side of the filings store.
type Dataset interface {
	Overview() dataset.Overview
	Preview(n int) *models.Table
	Organizations() []models.Organization
	Organization(ein string) (models.Organization, bool)
	Reload(ctx context.Context) error
}

// Server is the HTTP server for the taxlens API.
type Server struct {
	analyzer Analyzer
	sessions *session.Manager
	data     Dataset
	config   *config.ServerConfig
	dataPath string
	version  string
	logger   *zap.Logger
	server   *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithDataPath reports the data file's size and modification time in /api/v1/status.
func WithDataPath(path string) Option {
	return func(s *Server) { s.dataPath = path }
}

// WithVersion sets the version reported by /api/v1/status.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// NewServer creates a server with the given dependencies.
func NewServer(
	analyzer Analyzer,
	sessions *session.Manager,
	data Dataset,
	cfg *config.ServerConfig,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	s := &Server{
		analyzer: analyzer,
		sessions: sessions,
		data:     data,
		config:   cfg,
		logger:   utils.OrNop(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/questions", s.handleAsk)
			r.Get("/history", s.handleHistory)
			r.Delete("/history", s.handleClearHistory)
			r.Put("/focus", s.handleSetFocus)
		})
		r.Get("/dataset", s.handleDataset)
		r.Get("/dataset/preview", s.handlePreview)
		r.Post("/dataset/reload", s.handleReload)
		r.Get("/organizations", s.handleOrganizations)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
