// Package authclient verifies bearer tokens against the auth service's
// validate endpoint.
package authclient

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	apperrors "github.com/ncsyvn/microservices-go/pkg/errors"
	"github.com/ncsyvn/microservices-go/pkg/httpclient"
	"github.com/ncsyvn/microservices-go/pkg/middleware"
)

// ValidatePath is the auth service route that returns the claims of a live token.
const ValidatePath = "/api/v1/auth/tokens/validate"

const serviceName = "auth-service"

// Doer is the subset of httpclient.CircuitBreakerClient the verifier uses.
type Doer interface {
	Get(ctx context.Context, url string, header http.Header) (*http.Response, error)
}

// Verifier implements middleware.Verifier by asking the auth service. The
// auth service also checks revocation, so gates built on it need no
// RevocationChecker.
type Verifier struct {
	baseURL string
	client  Doer
	logger  *slog.Logger
}

var _ middleware.Verifier = (*Verifier)(nil)

// NewVerifier creates a verifier for the auth service at baseURL.
func NewVerifier(baseURL string, client Doer, logger *slog.Logger) *Verifier {
	return &Verifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// Verify returns the claims of token. A token the auth service rejects is
// unauthorized; every other failure of the call (transport error, open
// breaker, 5xx, unreadable reply) is forbidden.
func (v *Verifier) Verify(ctx context.Context, token string) (*middleware.Claims, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Get(ctx, v.baseURL+ValidatePath, header)
	if err != nil {
		return nil, v.forbidden(ctx, err)
	}

	var claims middleware.Claims
	if err := httpclient.DecodeEnvelope(resp, serviceName, &claims); err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			return nil, err
		}
		return nil, v.forbidden(ctx, err)
	}
	if claims.Subject == "" {
		return nil, v.forbidden(ctx, errors.New("validate response carries no subject"))
	}
	return &claims, nil
}

func (v *Verifier) forbidden(ctx context.Context, cause error) error {
	v.logger.WarnContext(ctx, "token validation call failed",
		slog.String("error", cause.Error()),
	)
	appErr := apperrors.Forbidden("could not validate token")
	appErr.Err = errors.Join(apperrors.ErrForbidden, cause)
	return appErr
}
