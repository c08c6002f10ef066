// Package api provides the HTTP API for UrbanIndex.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/urbanindex/urbanindex/internal/api/handler"
	"github.com/urbanindex/urbanindex/internal/api/middleware"
	"github.com/urbanindex/urbanindex/internal/city"
	"github.com/urbanindex/urbanindex/internal/heatmap"
	"github.com/urbanindex/urbanindex/internal/job"
	"github.com/urbanindex/urbanindex/internal/scoring"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	ScoringEngine *scoring.Engine
	Scheduler     *job.Scheduler
	Jobs          job.Repository
	Cells         heatmap.Repository
	Cities        city.Registry

	// DB is pinged by the readiness and status endpoints. May be nil.
	DB handler.Pinger
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "urbanindex-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.DB)
	scoreHandler := handler.NewScoreHandler(cfg.ScoringEngine, cfg.Scheduler)
	heatmapHandler := handler.NewHeatmapHandler(cfg.Cells)
	jobHandler := handler.NewJobHandler(cfg.Scheduler, cfg.Jobs)
	cityHandler := handler.NewCityHandler(cfg.Cities)

	// Rate limit middleware for different endpoint categories
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		// On-demand score endpoints - expensive compute, strict rate limiting
		r.Route("/scores", func(r chi.Router) {
			r.Use(expensiveRateLimit)
			r.Get("/", scoreHandler.GetScore)
			r.Get("/simplified", scoreHandler.GetSimplifiedScore)
		})

		// Heatmap window reads are served from precomputed cells
		r.With(standardRateLimit).Get("/heatmap", heatmapHandler.GetHeatmap)

		// Batch jobs
		r.Route("/jobs", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/", jobHandler.ListJobs)
			r.Post("/heatmap", jobHandler.ScheduleHeatmap)
			r.Get("/{jobId}", jobHandler.GetJob)
		})

		// Cities known to the scheduler
		r.With(standardRateLimit).Get("/cities", cityHandler.ListCities)
	})

	return r
}
