package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taotie/internal/middleware"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	Handler            *Handler
	Logger             *slog.Logger
	CORSAllowedOrigins []string
	RateLimit          middleware.RateLimitConfig
	// Registry receives the HTTP collectors and backs /metrics. Nil
	// disables both.
	Registry *prometheus.Registry
}

// NewRouter builds the chi router. ctx bounds background work of the
// rate limiter.
func NewRouter(ctx context.Context, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := cfg.Handler

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
		MaxAge:         300,
	}))
	if cfg.Registry != nil {
		r.Use(middleware.NewHTTPMetrics(cfg.Registry).Handler)
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	r.Get("/healthz", h.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimiter(ctx, cfg.RateLimit))

		r.Route("/datasets", func(r chi.Router) {
			r.Get("/", h.ListDatasets)
			r.Post("/", h.ConnectDataset)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/schema", h.Schema)
				r.Get("/head", h.Head)
				r.Get("/describe", h.Describe)
			})
		})
		r.Post("/sql", h.SQL)
	})

	return r
}
