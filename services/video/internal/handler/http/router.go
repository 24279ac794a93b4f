package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ncsyvn/microservices-go/pkg/health"
	"github.com/ncsyvn/microservices-go/pkg/middleware"
	"github.com/ncsyvn/microservices-go/services/video/internal/service"
)

// RouterConfig carries the HTTP-layer settings of the video service.
type RouterConfig struct {
	CORS  middleware.CORSConfig
	Debug middleware.DebugConfig

	// CacheMaxAge is advertised on public reads; 0 disables caching.
	CacheMaxAge time.Duration
}

// NewRouter creates a chi router with all video service routes registered.
// Gated routes are registered with their full path so that the permission
// key matches the seeded "method@route" entries.
func NewRouter(
	videoService *service.VideoService,
	gate *middleware.Gate,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing("video"))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("video"))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})
	middleware.RegisterPprof(r, cfg.Debug, logger)

	videoHandler := NewVideoHandler(videoService, logger)

	r.Group(func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.With(middleware.CacheControl(cfg.CacheMaxAge)).Get("/api/v1/videos", videoHandler.Search)
		r.With(middleware.CacheControl(cfg.CacheMaxAge)).Get("/api/v1/videos/{id}", videoHandler.Get)

		r.With(gate.Require()).Post("/api/v1/videos", videoHandler.Create)
		r.With(gate.Require()).Delete("/api/v1/videos/{id}", videoHandler.Delete)
	})

	return r
}
