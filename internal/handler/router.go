package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/shortify/shortify/internal/middleware"
)

// RouterConfig wires handlers into the HTTP surface. Nil handlers leave
// their routes unmounted.
type RouterConfig struct {
	AI                 *AIHandler
	Stats              *StatsHandler
	Jobs               *JobsHandler
	Health             *HealthHandler
	Metrics            http.Handler
	JobsToken          string
	AllowedOrigins     []string
	MaxRequestBodySize int64
	Logger             *slog.Logger
}

// NewRouter builds the chi router shared by the server and the Lambda adapter.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.NoStore)
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))
	}

	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)

	if cfg.Health != nil {
		r.Get("/healthz", cfg.Health.Healthz)
		r.Get("/readyz", cfg.Health.Readyz)
	}
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	if cfg.AI != nil {
		r.Get("/ai/latest", cfg.AI.Latest)
	}
	if cfg.Stats != nil {
		r.Get("/stats/{shortId}", cfg.Stats.Get)
	}
	if cfg.Jobs != nil {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireToken(cfg.JobsToken))
			r.Post("/jobs", cfg.Jobs.Run)
			r.Post("/alarms", cfg.Jobs.Alarm)
		})
	}
	return r
}
