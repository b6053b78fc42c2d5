package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/vcon-datasets/internal/middleware"
	natsclient "github.com/capitalize-ai/vcon-datasets/internal/nats"
	"github.com/capitalize-ai/vcon-datasets/pkg/logger"
)

// RouterConfig holds the dependencies and settings of the HTTP API.
type RouterConfig struct {
	Pipeline Ingester
	Datasets DatasetReader
	Outcomes OutcomeSource
	NATS     *natsclient.Client
	Logger   *logger.Logger

	AllowedOrigins    []string
	MaxUploadBytes    int64
	AuthEnabled       bool
	JWTSecret         string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter assembles the HTTP API.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	healthHandler := NewHealthHandler(cfg.NATS)
	uploadHandler := NewUploadHandler(cfg.Pipeline, log)
	datasetHandler := NewDatasetHandler(cfg.Datasets, log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log.Named("http")))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Retrieval stays public, like the static dataset files it replaces.
	r.Get("/datasets", datasetHandler.List)
	r.Get("/datasets/{file_name}", datasetHandler.Get)

	r.Group(func(r chi.Router) {
		if cfg.AuthEnabled {
			r.Use(middleware.Auth(cfg.JWTSecret))
			r.Use(middleware.RequireScope(middleware.ScopeUpload))
		}
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}
		r.Use(middleware.MaxBodySize(cfg.MaxUploadBytes))

		r.Post("/vcon-upload", uploadHandler.Upload)
	})

	if cfg.Outcomes != nil {
		ingestionHandler := NewIngestionHandler(cfg.Outcomes)

		r.Route("/api/v1", func(r chi.Router) {
			if cfg.AuthEnabled {
				r.Use(middleware.Auth(cfg.JWTSecret))
			}

			r.Get("/ingestions", ingestionHandler.List)
			r.Get("/ingestions/{name}", ingestionHandler.Get)
		})
	}

	return r
}
