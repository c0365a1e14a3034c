package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"influnest/internal/auth"
	"influnest/internal/lifecycle"
	"influnest/internal/oracle"
	"influnest/internal/pipeline"
	"influnest/internal/storage"

	"github.com/go-chi/chi/v5"
)

// MaxBatchReports bounds a single batch metrics submission
const MaxBatchReports = 500

// Dependencies are the components the handlers call into
type Dependencies struct {
	Repository    storage.Repository
	Lifecycle     *lifecycle.Service
	Oracle        *oracle.Registry
	Batch         *pipeline.BatchReporter
	Authenticator *auth.SignatureAuthenticator
}

// Server represents the HTTP API server
// Provides the campaign API plus Prometheus metrics and health checks
type Server struct {
	httpServer    *http.Server
	router        chi.Router
	repository    storage.Repository
	lifecycle     *lifecycle.Service
	oracle        *oracle.Registry
	batch         *pipeline.BatchReporter
	authenticator *auth.SignatureAuthenticator
	port          string
}

// NewServer creates a new API server instance
func NewServer(port string, deps Dependencies) *Server {
	s := &Server{
		router:        chi.NewRouter(),
		repository:    deps.Repository,
		lifecycle:     deps.Lifecycle,
		oracle:        deps.Oracle,
		batch:         deps.Batch,
		authenticator: deps.Authenticator,
		port:          port,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Register all HTTP routes
	s.registerRoutes()

	return s
}

// registerRoutes sets up all HTTP routes
func (s *Server) registerRoutes() {
	r := s.router
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.sendError(w, "Endpoint not found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	// Core endpoints
	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.handleMetrics())

	// Oracle registry
	r.Route("/oracle", func(r chi.Router) {
		r.Get("/", s.handleGetOracle)
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/initialize", s.handleInitializeOracle)
			r.Post("/rotate", s.handleRotateOracle)
		})
	})

	// Campaigns
	r.Route("/campaigns", func(r chi.Router) {
		r.Get("/", s.handleListCampaigns)
		r.With(s.requireAuth).Post("/", s.handleCreateCampaign)

		r.Route("/{influencer}/{createdAt}", func(r chi.Router) {
			r.Get("/", s.handleGetCampaign)
			r.Get("/events", s.handleGetCampaignEvents)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Post("/fund", s.handleFundCampaign)
				r.Post("/posts", s.handleAddPost)
				r.Post("/metrics", s.handleReportMetrics)
				r.Post("/reclaim", s.handleReclaim)
				r.Post("/cancel", s.handleCancel)
			})
		})
	})

	r.With(s.requireAuth).Post("/metrics/batch", s.handleBatchReport)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server in a goroutine
// Returns immediately after starting the server
func (s *Server) Start() error {
	go func() {
		slog.Info("🌐 API server starting",
			"port", s.port,
			"endpoints", []string{"/", "/health", "/metrics", "/oracle", "/campaigns"},
		)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the HTTP server
// Waits for active connections to close or context to timeout
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("API server shutting down...")
	return s.httpServer.Shutdown(ctx)
}
