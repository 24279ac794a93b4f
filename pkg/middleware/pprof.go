package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/ncsyvn/microservices-go/pkg/errors"
	"github.com/ncsyvn/microservices-go/pkg/httputil"
)

// DebugConfig controls the /debug/pprof endpoints. They are mounted only
// when at least one CIDR is allowed.
type DebugConfig struct {
	AllowedCIDRs []string `env:"ALLOWED_CIDRS" envSeparator:","`
}

// RegisterPprof mounts the pprof handlers behind an IP allowlist. It is a
// no-op when cfg allows nothing.
func RegisterPprof(r chi.Router, cfg DebugConfig, logger *slog.Logger) {
	if len(cfg.AllowedCIDRs) == 0 {
		return
	}
	r.Group(func(r chi.Router) {
		r.Use(IPAllowlist(cfg.AllowedCIDRs, logger))
		r.HandleFunc("/debug/pprof/*", pprof.Index)
		r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		r.HandleFunc("/debug/pprof/profile", pprof.Profile)
		r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		r.HandleFunc("/debug/pprof/trace", pprof.Trace)
	})
}

// IPAllowlist admits only requests whose remote address falls inside one of
// cidrs. Invalid CIDRs are logged and skipped. Rejections get the forbidden
// envelope with HTTP 403.
func IPAllowlist(cidrs []string, logger *slog.Logger) func(http.Handler) http.Handler {
	nets := parseCIDRs(cidrs, logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := remoteHost(r)
			if containsIP(nets, net.ParseIP(host)) {
				next.ServeHTTP(w, r)
				return
			}

			logger.WarnContext(r.Context(), "access denied by IP allowlist",
				slog.String("ip", host),
				slog.String("path", r.URL.Path),
			)
			resp := httputil.ErrorEnvelope(apperrors.Forbidden("access restricted by IP allowlist"))
			resp.Code = http.StatusForbidden
			httputil.WriteJSON(w, http.StatusForbidden, resp)
		})
	}
}
