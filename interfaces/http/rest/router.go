package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"papertrail/application/services"
	"papertrail/infrastructure/config"
	"papertrail/interfaces/http/rest/handlers"
	"papertrail/interfaces/http/rest/middleware"
	"papertrail/pkg/auth"
)

// Router creates and configures the HTTP router
type Router struct {
	cfg       *config.Config
	notes     *services.NoteService
	monitor   *services.CacheMonitor
	validator *auth.JWTValidator
	logger    *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	cfg *config.Config,
	notes *services.NoteService,
	monitor *services.CacheMonitor,
	validator *auth.JWTValidator,
	logger *zap.Logger,
) *Router {
	return &Router{
		cfg:       cfg,
		notes:     notes,
		monitor:   monitor,
		validator: validator,
		logger:    logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)

	authenticate := middleware.Authenticate(rt.validator, rt.logger)

	// API v1 routes
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(authenticate)

		r.Route("/notes", func(r chi.Router) {
			noteHandler := handlers.NewNoteHandler(rt.notes, rt.logger)
			r.Post("/", noteHandler.CreateNote)
			r.Get("/", noteHandler.GetMyNotes)
			r.Get("/shared", noteHandler.GetSharedNotes)
			r.Get("/{noteID}", noteHandler.GetNote)
			r.Put("/{noteID}", noteHandler.UpdateNote)
			r.Delete("/{noteID}", noteHandler.DeleteNote)
			r.Post("/{noteID}/share", noteHandler.ShareNote)
			r.Delete("/{noteID}/share/{userID}", noteHandler.RevokePermission)
		})
	})

	// Cache admin routes, restricted to the admin role
	router.Route("/admin/cache", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(middleware.RequireRole("admin"))

		adminHandler := handlers.NewCacheAdminHandler(rt.monitor, rt.notes.Metrics(), rt.logger)
		r.Get("/stats", adminHandler.Stats)
		r.Get("/metrics", adminHandler.Metrics)
		r.Post("/metrics/reset", adminHandler.ResetMetrics)
		r.Get("/dashboard", adminHandler.Dashboard)
		r.Post("/warmup", adminHandler.WarmUp)
		r.Delete("/{namespace}", adminHandler.ClearNamespace)
		r.Delete("/", adminHandler.ClearAll)
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck handles readiness check requests
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	if _, err := rt.monitor.Stats(req.Context()); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"degraded","cache":"unreachable"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
