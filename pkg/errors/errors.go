package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for common cases.
var (
	ErrNotFound            = errors.New("resource not found")
	ErrAlreadyExists       = errors.New("resource already exists")
	ErrInvalidInput        = errors.New("invalid input")
	ErrMalformedBody       = errors.New("malformed body")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInactiveAccount     = errors.New("inactive account")
	ErrOTPInvalid          = errors.New("otp invalid")
	ErrOTPExpired          = errors.New("otp expired")
	ErrOTPTooFrequent      = errors.New("otp requested too frequently")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrTokenExpired        = errors.New("token expired")
	ErrTokenRevoked        = errors.New("token revoked")
	ErrForceChangePassword = errors.New("password change required")
	ErrForbidden           = errors.New("forbidden")
	ErrRateLimited         = errors.New("rate limited")
	ErrInternal            = errors.New("internal error")
	ErrServiceUnavail      = errors.New("service unavailable")
)

// Message ids shown to clients. They are stable and clients key translations on them.
const (
	MsgOK                  = "200"
	MsgValidation          = "002"
	MsgNewOTPSent          = "301"
	MsgWrongOTP            = "305"
	MsgOTPExpired          = "306"
	MsgNotFound            = "307"
	MsgWrongPhonePassword  = "308"
	MsgOTPTooFrequent      = "309"
	MsgAlreadyExists       = "310"
	MsgSessionExpired      = "343"
	MsgWrongEmailPassword  = "396"
	MsgForbidden           = "403"
	MsgInactiveAccount     = "414"
	MsgForceChangePassword = "415"
	MsgRateLimited         = "429"
	MsgMalformedBody       = "442"
	MsgInternal            = "500"
)

// StatusMalformedBody is the envelope code (and HTTP status) for unparseable request bodies.
const StatusMalformedBody = 442

// AppError represents a structured application error. Status is used both as
// the envelope code and as the HTTP status; business errors keep 200.
type AppError struct {
	Code      string `json:"code"`
	MessageID string `json:"message_id"`
	Message   string `json:"message"`
	Status    int    `json:"-"`
	Data      any    `json:"-"`
	Err       error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithData attaches a payload rendered in the envelope's data field.
func (e *AppError) WithData(data any) *AppError {
	e.Data = data
	return e
}

// NotFound creates a not-found business error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:      "NOT_FOUND",
		MessageID: MsgNotFound,
		Message:   fmt.Sprintf("%s with id %s not found", resource, id),
		Status:    http.StatusOK,
		Err:       ErrNotFound,
	}
}

// AlreadyExists creates a duplicate-resource business error.
func AlreadyExists(resource, field, value string) *AppError {
	return &AppError{
		Code:      "ALREADY_EXISTS",
		MessageID: MsgAlreadyExists,
		Message:   fmt.Sprintf("%s with %s %q already exists", resource, field, value),
		Status:    http.StatusOK,
		Err:       ErrAlreadyExists,
	}
}

// InvalidInput creates a validation error. Field details go in Data.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:      "VALIDATION_ERROR",
		MessageID: MsgValidation,
		Message:   message,
		Status:    http.StatusOK,
		Err:       ErrInvalidInput,
	}
}

// MalformedBody creates the 442 error for bodies that are not valid JSON.
func MalformedBody(err error) *AppError {
	return &AppError{
		Code:      "MALFORMED_BODY",
		MessageID: MsgMalformedBody,
		Message:   "request body is not valid JSON",
		Status:    StatusMalformedBody,
		Err:       errors.Join(ErrMalformedBody, err),
	}
}

// InvalidCredentials creates a credential mismatch error; messageID
// distinguishes the email and phone flows.
func InvalidCredentials(messageID, message string) *AppError {
	return &AppError{
		Code:      "INVALID_CREDENTIALS",
		MessageID: messageID,
		Message:   message,
		Status:    http.StatusOK,
		Err:       ErrInvalidCredentials,
	}
}

func InactiveAccount() *AppError {
	return &AppError{
		Code:      "INACTIVE_ACCOUNT",
		MessageID: MsgInactiveAccount,
		Message:   "account is inactive",
		Status:    http.StatusOK,
		Err:       ErrInactiveAccount,
	}
}

func OTPInvalid() *AppError {
	return &AppError{
		Code:      "OTP_INVALID",
		MessageID: MsgWrongOTP,
		Message:   "otp is incorrect",
		Status:    http.StatusOK,
		Err:       ErrOTPInvalid,
	}
}

func OTPExpired() *AppError {
	return &AppError{
		Code:      "OTP_EXPIRED",
		MessageID: MsgOTPExpired,
		Message:   "otp has expired",
		Status:    http.StatusOK,
		Err:       ErrOTPExpired,
	}
}

func OTPTooFrequent() *AppError {
	return &AppError{
		Code:      "OTP_TOO_FREQUENT",
		MessageID: MsgOTPTooFrequent,
		Message:   "otp was requested too recently",
		Status:    http.StatusOK,
		Err:       ErrOTPTooFrequent,
	}
}

// Unauthorized creates a 401 error for missing or invalid tokens.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:      "UNAUTHORIZED",
		MessageID: MsgSessionExpired,
		Message:   message,
		Status:    http.StatusUnauthorized,
		Err:       ErrUnauthorized,
	}
}

// TokenExpired creates a 401 error for tokens past their expiry.
func TokenExpired() *AppError {
	return &AppError{
		Code:      "TOKEN_EXPIRED",
		MessageID: MsgSessionExpired,
		Message:   "session has expired",
		Status:    http.StatusUnauthorized,
		Err:       ErrTokenExpired,
	}
}

// TokenRevoked creates a 401 error for tokens flagged in the ledger.
func TokenRevoked() *AppError {
	return &AppError{
		Code:      "TOKEN_REVOKED",
		MessageID: MsgSessionExpired,
		Message:   "session has been revoked",
		Status:    http.StatusUnauthorized,
		Err:       ErrTokenRevoked,
	}
}

func ForceChangePassword() *AppError {
	return &AppError{
		Code:      "FORCE_CHANGE_PASSWORD",
		MessageID: MsgForceChangePassword,
		Message:   "password must be changed before continuing",
		Status:    http.StatusOK,
		Err:       ErrForceChangePassword,
	}
}

// Forbidden creates a permission error.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:      "FORBIDDEN",
		MessageID: MsgForbidden,
		Message:   message,
		Status:    http.StatusOK,
		Err:       ErrForbidden,
	}
}

func RateLimited() *AppError {
	return &AppError{
		Code:      "RATE_LIMITED",
		MessageID: MsgRateLimited,
		Message:   "too many requests",
		Status:    http.StatusTooManyRequests,
		Err:       ErrRateLimited,
	}
}

// ServiceUnavailable wraps a dependency outage.
func ServiceUnavailable(err error) *AppError {
	return &AppError{
		Code:      "SERVICE_UNAVAILABLE",
		MessageID: MsgInternal,
		Message:   "a dependency is unavailable",
		Status:    http.StatusServiceUnavailable,
		Err:       errors.Join(ErrServiceUnavail, err),
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:      "INTERNAL_ERROR",
		MessageID: MsgInternal,
		Message:   "an internal error occurred",
		Status:    http.StatusInternalServerError,
		Err:       err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// From converts any error to an AppError, mapping bare sentinels to their
// constructors and everything else to Internal.
func From(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return &AppError{Code: "NOT_FOUND", MessageID: MsgNotFound, Message: "resource not found", Status: http.StatusOK, Err: err}
	case errors.Is(err, ErrAlreadyExists):
		return &AppError{Code: "ALREADY_EXISTS", MessageID: MsgAlreadyExists, Message: "resource already exists", Status: http.StatusOK, Err: err}
	case errors.Is(err, ErrInvalidInput):
		return &AppError{Code: "VALIDATION_ERROR", MessageID: MsgValidation, Message: err.Error(), Status: http.StatusOK, Err: err}
	case errors.Is(err, ErrTokenExpired):
		return TokenExpired()
	case errors.Is(err, ErrTokenRevoked):
		return TokenRevoked()
	case errors.Is(err, ErrUnauthorized):
		return Unauthorized("unauthorized")
	case errors.Is(err, ErrForbidden):
		return Forbidden("forbidden")
	default:
		return Internal(err)
	}
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	return From(err).Status
}
