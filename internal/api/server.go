// Package api provides the HTTP API server and handlers for the annotation service.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/annotateapp/annotate-server/internal/http/response"
	"github.com/annotateapp/annotate-server/internal/service"
	"github.com/annotateapp/annotate-server/internal/validation"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	annotations *service.AnnotationService
	moderation  *service.ModerationService
	validator   *validation.Validator
	router      *chi.Mux
	logger      *slog.Logger
	adminKey    string
	origins     []string
	pageSize    int
}

// Options configures the HTTP server surface.
type Options struct {
	AdminKey       string   // consumer key required on the moderation routes
	AllowedOrigins []string // CORS origins; empty allows any
	PageSize       int      // listing page size when the client sends no limit
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(annotations *service.AnnotationService, moderation *service.ModerationService, opts Options, logger *slog.Logger) *Server {
	s := &Server{
		annotations: annotations,
		moderation:  moderation,
		validator:   validation.New(),
		router:      chi.NewRouter(),
		logger:      logger,
		adminKey:    opts.AdminKey,
		origins:     opts.AllowedOrigins,
		pageSize:    opts.PageSize,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	// The store is consumed cross-origin by embedded annotator clients.
	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", headerUser, headerConsumerKey},
		MaxAge:         300,
	}))

	s.router.Use(s.withPrincipal)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Health check.
	s.router.Get("/health", s.handleHealthCheck)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/", s.handleDescribe)
		r.Get("/search", s.handleSearch)

		r.Route("/annotations", func(r chi.Router) {
			r.Get("/", s.handleListAnnotations)
			r.Post("/", s.handleCreateAnnotation)
			r.Get("/{id}", s.handleReadAnnotation)
			r.Put("/{id}", s.handleUpdateAnnotation)
			r.Delete("/{id}", s.handleDeleteAnnotation)
		})

		// Moderation (requires the admin consumer key).
		r.Route("/nipsa", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/", s.handleListFlagged)
			r.Put("/{userid}", s.handleFlagUser)
			r.Delete("/{userid}", s.handleUnflagUser)
			r.Post("/reindex", s.handleReindex)
		})
	})
}

// handleHealthCheck returns server health status.
func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, map[string]string{
		"status": "healthy",
	}, s.logger)
}

// handleDescribe returns the static API capability document.
func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	baseURL := scheme + "://" + r.Host + "/api"

	response.Success(w, s.annotations.Describe(baseURL), s.logger)
}
