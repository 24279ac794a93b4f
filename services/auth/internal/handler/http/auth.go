package http

import (
	"log/slog"
	"net/http"

	apperrors "github.com/ncsyvn/microservices-go/pkg/errors"
	"github.com/ncsyvn/microservices-go/pkg/httputil"
	"github.com/ncsyvn/microservices-go/pkg/logger"
	"github.com/ncsyvn/microservices-go/pkg/middleware"
	"github.com/ncsyvn/microservices-go/pkg/validator"
	"github.com/ncsyvn/microservices-go/services/auth/internal/service"
)

// AuthHandler handles HTTP requests for auth endpoints.
type AuthHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// SignupRequest is the JSON request body for signup.
type SignupRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,password"`
}

// LoginRequest is the JSON request body for login. Either email or phone
// identifies the user; password and otp are each optional but one is needed.
type LoginRequest struct {
	Email    string `json:"email" validate:"required_without=Phone,omitempty,email,max=255"`
	Phone    string `json:"phone" validate:"required_without=Email,omitempty,phone"`
	Password string `json:"password" validate:"omitempty,max=16"`
	OTP      string `json:"otp" validate:"omitempty,otp"`
}

// SendOTPRequest is the JSON request body for send_otp.
type SendOTPRequest struct {
	Phone string `json:"phone" validate:"required,phone"`
}

// CheckOTPRequest is the JSON request body for check_otp.
type CheckOTPRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	OTP    string `json:"otp" validate:"required,otp"`
}

// ResetPasswordRequest is the JSON request body for reset_password.
type ResetPasswordRequest struct {
	UserID   string `json:"user_id" validate:"required,uuid"`
	Password string `json:"password" validate:"required,password"`
}

// ChangePasswordRequest is the JSON request body for change_password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required,max=16"`
	NewPassword     string `json:"new_password" validate:"required,password"`
}

// --- Handlers ---

// Signup handles POST /api/v1/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	limitBody(w, r)

	var req SignupRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	h.logInput(r, "signup", slog.String("email", req.Email))

	result, err := h.service.Signup(r.Context(), service.SignupInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteResult(w, result, "", "")
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	limitBody(w, r)

	var req LoginRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	h.logInput(r, "login",
		slog.String("email", req.Email),
		slog.String("phone", req.Phone),
		slog.Bool("with_otp", req.OTP != ""),
	)

	result, err := h.service.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		OTP:      req.OTP,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteResult(w, result, "", "")
}

// SendOTP handles POST /api/v1/auth/send_otp
func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	limitBody(w, r)

	var req SendOTPRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	h.logInput(r, "send_otp", slog.String("phone", req.Phone))

	result, err := h.service.SendOTP(r.Context(), req.Phone)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteResult(w, result, apperrors.MsgNewOTPSent, "a new otp has been sent")
}

// CheckOTP handles POST /api/v1/auth/check_otp
func (h *AuthHandler) CheckOTP(w http.ResponseWriter, r *http.Request) {
	limitBody(w, r)

	var req CheckOTPRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	h.logInput(r, "check_otp", slog.String("user_id", req.UserID))

	result, err := h.service.CheckOTP(r.Context(), req.UserID, req.OTP)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteResult(w, result, "", "")
}

// ResetPassword handles POST /api/v1/auth/reset_password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	limitBody(w, r)

	var req ResetPasswordRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	h.logInput(r, "reset_password", slog.String("user_id", req.UserID))

	result, err := h.service.ResetPassword(r.Context(), req.UserID, req.Password)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteResult(w, result, "", "")
}

// Refresh handles POST /api/v1/auth/refresh. The refresh token travels in
// the Authorization header.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)
	if token == "" {
		httputil.WriteError(w, r, apperrors.Unauthorized("missing refresh token"), h.logger)
		return
	}

	result, err := h.service.Refresh(r.Context(), token)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteResult(w, result, "", "")
}

// Logout handles DELETE /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	if err := h.service.Logout(r.Context(), claims.TokenID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteResult(w, nil, "", "")
}

// ChangePassword handles POST /api/v1/auth/change_password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	limitBody(w, r)
	claims := middleware.ClaimsFromContext(r.Context())

	var req ChangePasswordRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result, err := h.service.ChangePassword(r.Context(), service.ChangePasswordInput{
		UserID:          claims.Subject,
		TokenID:         claims.TokenID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteResult(w, result, "", "")
}

// ValidateToken handles GET /api/v1/auth/tokens/validate. The gate has
// already verified the token and checked the ledger; the claims are echoed
// back for callers doing their own permission check.
func (h *AuthHandler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	httputil.WriteResult(w, middleware.ClaimsFromContext(r.Context()), "", "")
}

// PruneExpired handles DELETE /api/v1/auth/tokens/expired
func (h *AuthHandler) PruneExpired(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.PruneExpired(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteResult(w, result, "", "")
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Me(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteResult(w, result, "", "")
}

func (h *AuthHandler) logInput(r *http.Request, op string, attrs ...any) {
	logger.FromContext(r.Context()).DebugContext(r.Context(), "request input",
		append([]any{slog.String("op", op)}, attrs...)...)
}
