package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/ncsyvn/microservices-go/pkg/errors"
	"github.com/ncsyvn/microservices-go/pkg/httputil"
	"github.com/ncsyvn/microservices-go/pkg/logger"
)

type contextKeyType string

const claimsKey contextKeyType = "claims"

var gateDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "auth_gate_decisions_total",
	Help: "Authorization gate decisions by outcome.",
}, []string{"decision"})

// Claims is the verified content of a bearer token the gate works with.
type Claims struct {
	Subject             string   `json:"sub"`
	TokenID             string   `json:"jti"`
	Kind                string   `json:"type"`
	Permissions         []string `json:"list_permission"`
	ForceChangePassword bool     `json:"force_change_password"`
}

// HasPermission reports whether key is in the claims' permission list.
func (c *Claims) HasPermission(key string) bool {
	return slices.Contains(c.Permissions, key)
}

// Verifier checks a raw token's signature, expiry and kind. It must return an
// error wrapping apperrors.ErrTokenExpired for expired tokens.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, token string) (*Claims, error)

func (f VerifierFunc) Verify(ctx context.Context, token string) (*Claims, error) {
	return f(ctx, token)
}

// RevocationChecker reports whether a jti is revoked. Unknown ids are revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Decision is the outcome of one gate evaluation.
type Decision int

const (
	DecisionAllow Decision = iota
	DecisionUnauthenticated
	DecisionExpired
	DecisionRevoked
	DecisionForceChangePassword
	DecisionForbidden
	DecisionInternal
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionUnauthenticated:
		return "unauthenticated"
	case DecisionExpired:
		return "expired"
	case DecisionRevoked:
		return "revoked"
	case DecisionForceChangePassword:
		return "force_change_password"
	case DecisionForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// Err maps a rejecting decision to the error rendered to the client.
func (d Decision) Err(cause error) *apperrors.AppError {
	switch d {
	case DecisionAllow:
		return nil
	case DecisionUnauthenticated:
		return apperrors.Unauthorized("missing or invalid token")
	case DecisionExpired:
		return apperrors.TokenExpired()
	case DecisionRevoked:
		return apperrors.TokenRevoked()
	case DecisionForceChangePassword:
		return apperrors.ForceChangePassword()
	case DecisionForbidden:
		return apperrors.Forbidden("you do not have permission to access this resource")
	default:
		return apperrors.Internal(cause)
	}
}

// AuthRequest is the input to Gate.Authorize.
type AuthRequest struct {
	Token    string
	RouteKey string

	// SkipForceChange lets a flagged user through (the change-password route).
	SkipForceChange bool
	// SkipPermission stops after the revocation check.
	SkipPermission bool
}

// Gate runs verify, revocation, force-password-change and permission checks
// in that order and stops at the first rejection.
type Gate struct {
	verifier   Verifier
	revocation RevocationChecker
	logger     *slog.Logger
}

// NewGate creates a gate. revocation may be nil when the verifier already
// consults the ledger (the federated validator does).
func NewGate(verifier Verifier, revocation RevocationChecker, logger *slog.Logger) *Gate {
	return &Gate{verifier: verifier, revocation: revocation, logger: logger}
}

// Authorize evaluates req. The returned error is set only for
// DecisionInternal and for verifier failures.
func (g *Gate) Authorize(ctx context.Context, req AuthRequest) (Decision, *Claims, error) {
	if req.Token == "" {
		return DecisionUnauthenticated, nil, nil
	}

	claims, err := g.verifier.Verify(ctx, req.Token)
	if err != nil {
		return verifyDecision(err), nil, err
	}

	if g.revocation != nil {
		revoked, err := g.revocation.IsRevoked(ctx, claims.TokenID)
		if err != nil {
			return DecisionInternal, claims, err
		}
		if revoked {
			return DecisionRevoked, claims, nil
		}
	}

	if claims.ForceChangePassword && !req.SkipForceChange {
		return DecisionForceChangePassword, claims, nil
	}

	if !req.SkipPermission && !claims.HasPermission(req.RouteKey) {
		return DecisionForbidden, claims, nil
	}

	return DecisionAllow, claims, nil
}

func verifyDecision(err error) Decision {
	switch {
	case errors.Is(err, apperrors.ErrTokenExpired):
		return DecisionExpired
	case errors.Is(err, apperrors.ErrTokenRevoked):
		return DecisionRevoked
	case errors.Is(err, apperrors.ErrForceChangePassword):
		return DecisionForceChangePassword
	case errors.Is(err, apperrors.ErrForbidden):
		return DecisionForbidden
	case errors.Is(err, apperrors.ErrUnauthorized), errors.Is(err, apperrors.ErrInvalidInput):
		return DecisionUnauthenticated
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Status < http.StatusInternalServerError {
		return DecisionUnauthenticated
	}
	return DecisionInternal
}

// GateOption adjusts a single route's guard.
type GateOption func(*AuthRequest)

// AllowForceChange lets users flagged for a forced password change through.
func AllowForceChange() GateOption {
	return func(r *AuthRequest) { r.SkipForceChange = true }
}

// AuthenticateOnly skips the permission check.
func AuthenticateOnly() GateOption {
	return func(r *AuthRequest) { r.SkipPermission = true }
}

// Require returns middleware that guards a route with the gate. Allowed
// requests carry the claims in their context; rejected ones get an envelope.
func (g *Gate) Require(opts ...GateOption) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := AuthRequest{Token: BearerToken(r), RouteKey: RouteKey(r)}
			for _, opt := range opts {
				opt(&req)
			}

			decision, claims, err := g.Authorize(r.Context(), req)
			gateDecisions.WithLabelValues(decision.String()).Inc()

			if decision != DecisionAllow {
				g.logger.DebugContext(r.Context(), "request rejected by gate",
					slog.String("decision", decision.String()),
					slog.String("route", req.RouteKey),
				)
				httputil.WriteError(w, r, decision.Err(err), g.logger)
				return
			}

			ctx := WithClaims(r.Context(), claims)
			ctx = logger.WithUserID(ctx, claims.Subject)
			ctx = logger.WithTokenID(ctx, claims.TokenID)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(
				slog.String("user_id", claims.Subject),
				slog.String("jti", claims.TokenID),
			))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. It returns "" when the header is missing or malformed.
func BearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RouteKey returns the permission key "<method lower>@<route pattern>" for r,
// using the raw path when chi has not matched a pattern.
func RouteKey(r *http.Request) string {
	route := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			route = pattern
		}
	}
	return strings.ToLower(r.Method) + "@" + route
}

// WithClaims stores verified claims in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext returns the claims stored by the gate, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

// UserIDFromContext extracts the authenticated user's id from the request context.
func UserIDFromContext(ctx context.Context) string {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.Subject
	}
	return ""
}
