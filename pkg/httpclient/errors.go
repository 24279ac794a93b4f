package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/ncsyvn/microservices-go/pkg/errors"
	"github.com/ncsyvn/microservices-go/pkg/httputil"
)

const maxEnvelopeBytes = 1 << 20

type rawEnvelope struct {
	Code    int              `json:"code"`
	Data    json.RawMessage  `json:"data"`
	Message httputil.Message `json:"message"`
}

// DecodeEnvelope reads a downstream envelope response and, on success,
// unmarshals its data into dst (which may be nil). A non-success envelope is
// translated into an AppError that keeps the downstream message id and text.
// The body is always consumed and closed.
func DecodeEnvelope(resp *http.Response, serviceName string, dst any) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxEnvelopeBytes))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	var env rawEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Message.Status == "" {
		return fmt.Errorf("%s returned status %d with a non-envelope body: %s", serviceName, resp.StatusCode, truncate(body))
	}

	if env.Code != http.StatusOK || env.Message.Status != httputil.StatusSuccess {
		return mapEnvelopeError(env, serviceName)
	}

	if dst == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("decode %s response data: %w", serviceName, err)
	}
	return nil
}

// mapEnvelopeError rebuilds the error a downstream service rendered so that
// errors.Is keeps working against the local sentinels.
func mapEnvelopeError(env rawEnvelope, serviceName string) error {
	text := fmt.Sprintf("%s: %s", serviceName, env.Message.Text)

	var appErr *apperrors.AppError
	switch {
	case env.Message.ID == apperrors.MsgForceChangePassword:
		appErr = apperrors.ForceChangePassword()
	case env.Message.ID == apperrors.MsgForbidden:
		appErr = apperrors.Forbidden(text)
	case env.Code == http.StatusUnauthorized:
		appErr = apperrors.Unauthorized(text)
	case env.Code == http.StatusTooManyRequests:
		appErr = apperrors.RateLimited()
	case env.Code >= http.StatusInternalServerError:
		return apperrors.ServiceUnavailable(fmt.Errorf("%s server error (%d/%s): %s",
			serviceName, env.Code, env.Message.ID, env.Message.Text))
	default:
		appErr = &apperrors.AppError{
			Code:      "DOWNSTREAM_ERROR",
			MessageID: env.Message.ID,
			Message:   text,
			Status:    env.Code,
		}
	}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		appErr = appErr.WithData(env.Data)
	}
	return appErr
}

func truncate(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
