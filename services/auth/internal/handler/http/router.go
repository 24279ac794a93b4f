package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ncsyvn/microservices-go/pkg/health"
	"github.com/ncsyvn/microservices-go/pkg/middleware"
	"github.com/ncsyvn/microservices-go/services/auth/internal/service"
)

// RouterConfig carries the HTTP-layer settings of the auth service.
type RouterConfig struct {
	CORS      middleware.CORSConfig
	Debug     middleware.DebugConfig
	RateLimit middleware.RateLimitConfig
}

// NewRouter creates a chi router with all auth service routes registered.
// ctx bounds the rate limiter's cleanup goroutine.
func NewRouter(
	ctx context.Context,
	authService *service.AuthService,
	gate *middleware.Gate,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing("auth"))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("auth"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})
	middleware.RegisterPprof(r, cfg.Debug, logger)

	authHandler := NewAuthHandler(authService, logger)
	limited := middleware.RateLimit(ctx, cfg.RateLimit, logger)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.CacheControl(0))

		// Public
		r.Post("/signup", authHandler.Signup)
		r.With(limited).Post("/login", authHandler.Login)
		r.With(limited).Post("/send_otp", authHandler.SendOTP)
		r.Post("/check_otp", authHandler.CheckOTP)
		r.Post("/reset_password", authHandler.ResetPassword)
		r.Post("/refresh", authHandler.Refresh)

		// Gated
		r.With(gate.Require()).Delete("/logout", authHandler.Logout)
		r.With(gate.Require(middleware.AllowForceChange())).Post("/change_password", authHandler.ChangePassword)
		r.With(gate.Require(middleware.AllowForceChange(), middleware.AuthenticateOnly())).
			Get("/tokens/validate", authHandler.ValidateToken)
		r.With(gate.Require()).Delete("/tokens/expired", authHandler.PruneExpired)
		r.With(gate.Require()).Get("/me", authHandler.Me)
	})

	return r
}
