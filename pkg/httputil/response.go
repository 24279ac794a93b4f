package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	apperrors "github.com/ncsyvn/microservices-go/pkg/errors"
	"github.com/ncsyvn/microservices-go/pkg/logger"
	"github.com/ncsyvn/microservices-go/pkg/validator"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"

	// DefaultDuration is how long, in seconds, clients display a shown message.
	DefaultDuration = 5
)

// Response is the uniform envelope returned by every endpoint.
type Response struct {
	Code    int     `json:"code"`
	Data    any     `json:"data"`
	Message Message `json:"message"`
}

// Message describes the user-facing message attached to a response.
type Message struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Status   string `json:"status"`
	Show     bool   `json:"show"`
	Duration int    `json:"duration"`
}

// Success reports whether the envelope carries a successful result.
func (r Response) Success() bool {
	return r.Code == http.StatusOK && r.Message.Status == StatusSuccess
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteResult writes a success envelope. An empty messageID yields a silent
// message the client does not display.
func WriteResult(w http.ResponseWriter, data any, messageID, text string) {
	if messageID == "" {
		messageID = apperrors.MsgOK
	}
	WriteJSON(w, http.StatusOK, Response{
		Code: http.StatusOK,
		Data: data,
		Message: Message{
			ID:       messageID,
			Text:     text,
			Status:   StatusSuccess,
			Show:     text != "",
			Duration: DefaultDuration,
		},
	})
}

// ErrorEnvelope renders err as an error envelope without writing it.
func ErrorEnvelope(err error) Response {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		err = apperrors.InvalidInput("request validation failed").WithData(valErr.Fields())
	}
	appErr := apperrors.From(err)
	return Response{
		Code: appErr.Status,
		Data: appErr.Data,
		Message: Message{
			ID:       appErr.MessageID,
			Text:     appErr.Message,
			Status:   StatusError,
			Show:     true,
			Duration: DefaultDuration,
		},
	}
}

// WriteError writes the error envelope for err. Business errors keep HTTP 200;
// authentication, malformed-body and internal errors use their own status.
// Internal errors are logged with the request-scoped logger when one is set.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}

	resp := ErrorEnvelope(err)
	if resp.Code >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, resp.Code, resp)
}

// WriteValidationError writes the validation envelope with field-level errors
// in data. Errors that are not validation errors are written as-is.
func WriteValidationError(w http.ResponseWriter, err error) {
	resp := ErrorEnvelope(err)
	WriteJSON(w, resp.Code, resp)
}

// ParseUUID validates that the given string is a valid UUID and returns it.
// If invalid, it writes a validation envelope and returns uuid.Nil plus false,
// signaling the caller to return early.
func ParseUUID(w http.ResponseWriter, name, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(param)
	if err != nil {
		WriteValidationError(w, apperrors.InvalidInput("invalid UUID: "+param).
			WithData(map[string]string{name: "must be a valid UUID"}))
		return uuid.Nil, false
	}
	return id, true
}
