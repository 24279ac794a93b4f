package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/ncsyvn/microservices-go/pkg/errors"
	"github.com/ncsyvn/microservices-go/services/auth/internal/auth"
	"github.com/ncsyvn/microservices-go/services/auth/internal/domain"
	"github.com/ncsyvn/microservices-go/services/auth/internal/repository"
)

// bcryptCost is the cost factor for bcrypt password hashing.
var bcryptCost = 12

// EventPublisher publishes auth domain events. Failures are logged by the
// service and never fail the request.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, user *domain.User) error
	PublishOTPRequested(ctx context.Context, user *domain.User) error
	PublishPasswordReset(ctx context.Context, user *domain.User) error
}

// OTPCooldown throttles OTP requests per phone number.
type OTPCooldown interface {
	Acquire(ctx context.Context, phone string) (bool, error)
	Release(ctx context.Context, phone string) error
}

// AuthService implements the credential and token flows.
type AuthService struct {
	store    repository.Store
	issuer   *auth.Issuer
	ledger   *auth.Ledger
	cooldown OTPCooldown
	events   EventPublisher
	otpTTL   time.Duration
	logger   *slog.Logger
	now      func() time.Time
	newOTP   func() (string, error)
}

// NewAuthService creates the auth service. cooldown may be nil.
func NewAuthService(
	store repository.Store,
	issuer *auth.Issuer,
	ledger *auth.Ledger,
	cooldown OTPCooldown,
	events EventPublisher,
	otpTTL time.Duration,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		store:    store,
		issuer:   issuer,
		ledger:   ledger,
		cooldown: cooldown,
		events:   events,
		otpTTL:   otpTTL,
		logger:   logger,
		now:      time.Now,
		newOTP:   randomOTP,
	}
}

// --- Inputs and results ---

// SignupInput holds the parameters for creating an account.
type SignupInput struct {
	Email    string
	Password string
}

// LoginInput holds the parameters for logging in. Exactly one of Email and
// Phone identifies the user; Password and OTP are each checked when set.
type LoginInput struct {
	Email    string
	Phone    string
	Password string
	OTP      string
}

// ChangePasswordInput holds the parameters for changing a password. TokenID
// is the jti of the token making the request; it stays valid.
type ChangePasswordInput struct {
	UserID          string
	TokenID         string
	CurrentPassword string
	NewPassword     string
}

// SendOTPResult is returned by SendOTP.
type SendOTPResult struct {
	UserID string `json:"user_id"`
}

// RefreshResult is returned by Refresh.
type RefreshResult struct {
	AccessToken string `json:"access_token"`
}

// PruneResult is returned by PruneExpired.
type PruneResult struct {
	Pruned int64 `json:"pruned"`
}

// --- Auth flows ---

// Signup creates a user in the default group and logs it in.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*domain.AuthResult, error) {
	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().Unix()
	user := &domain.User{
		ID:                uuid.NewString(),
		Email:             input.Email,
		PasswordHash:      hash,
		IsActive:          true,
		GroupID:           domain.DefaultGroupID,
		RegisterStatus:    domain.RegisterStatusNormal,
		PasswordChangedAt: now,
		CreatedAt:         now,
		ModifiedAt:        now,
	}

	var pair domain.TokenPair
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Users().GetByEmail(ctx, input.Email); err == nil {
			return apperrors.AlreadyExists("user", "email", input.Email)
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("check email: %w", err)
		}
		if err := tx.Users().Create(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		pair, err = s.issuePair(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.events.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user signed up",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return authResult(user, pair), nil
}

// Login authenticates by email or phone and issues a token pair.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*domain.AuthResult, error) {
	if input.Password == "" && input.OTP == "" {
		return nil, apperrors.InvalidInput("password or otp is required").
			WithData(map[string]string{"password": "password or otp is required"})
	}

	var (
		user *domain.User
		err  error
	)
	if input.Email != "" {
		user, err = s.store.Users().GetByEmail(ctx, input.Email)
		if err = s.checkCredentials(user, err, input.Password); err != nil {
			return nil, withMessage(err, apperrors.MsgWrongEmailPassword, "email or password is incorrect")
		}
	} else {
		phones := []string{input.Phone, domain.AlternatePhone(input.Phone)}
		user, err = s.store.Users().GetByPhone(ctx, phones, domain.RegisterStatusNormal)
		if err = s.checkCredentials(user, err, input.Password); err != nil {
			return nil, withMessage(err, apperrors.MsgWrongPhonePassword, "phone or password is incorrect")
		}
	}

	if !user.IsActive {
		return nil, apperrors.InactiveAccount()
	}

	if input.OTP != "" {
		if !user.OTPMatches(input.OTP) {
			return nil, apperrors.OTPInvalid()
		}
		if user.OTPExpired(s.now().Unix()) {
			return nil, apperrors.OTPExpired()
		}
	}

	var pair domain.TokenPair
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		pair, err = s.issuePair(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))

	return authResult(user, pair), nil
}

// errCredentialMismatch marks a failed lookup or password check; the caller
// turns it into the flow-specific message.
var errCredentialMismatch = errors.New("credential mismatch")

func (s *AuthService) checkCredentials(user *domain.User, lookupErr error, password string) error {
	if lookupErr != nil {
		if errors.Is(lookupErr, apperrors.ErrNotFound) {
			return errCredentialMismatch
		}
		return fmt.Errorf("look up user: %w", lookupErr)
	}
	if password != "" && bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return errCredentialMismatch
	}
	return nil
}

func withMessage(err error, messageID, text string) error {
	if errors.Is(err, errCredentialMismatch) {
		return apperrors.InvalidCredentials(messageID, text)
	}
	return err
}

// SendOTP stores a fresh OTP for the normal, active user owning phone and
// publishes an otp.requested event for delivery.
func (s *AuthService) SendOTP(ctx context.Context, phone string) (*SendOTPResult, error) {
	phones := []string{phone, domain.AlternatePhone(phone)}
	user, err := s.store.Users().GetByPhone(ctx, phones, domain.RegisterStatusNormal)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("phone", phone)
		}
		return nil, fmt.Errorf("look up phone: %w", err)
	}
	if !user.IsActive {
		return nil, apperrors.NotFound("phone", phone)
	}

	if s.cooldown != nil {
		ok, err := s.cooldown.Acquire(ctx, user.Phone)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "otp cooldown unavailable, continuing without it",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		case !ok:
			return nil, apperrors.OTPTooFrequent()
		}
	}

	otp, err := s.newOTP()
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}
	now := s.now()
	user.OTP = otp
	user.OTPTTL = now.Add(s.otpTTL).Unix()
	user.ModifiedAt = now.Unix()

	if err := s.store.Users().Update(ctx, user); err != nil {
		if s.cooldown != nil {
			if relErr := s.cooldown.Release(ctx, user.Phone); relErr != nil {
				s.logger.WarnContext(ctx, "failed to release otp cooldown", slog.String("error", relErr.Error()))
			}
		}
		return nil, fmt.Errorf("store otp: %w", err)
	}

	if err := s.events.PublishOTPRequested(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish otp.requested event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "otp issued", slog.String("user_id", user.ID))

	return &SendOTPResult{UserID: user.ID}, nil
}

// CheckOTP verifies the OTP of userID and marks the user as OTP-verified.
func (s *AuthService) CheckOTP(ctx context.Context, userID, otp string) (*domain.UserSchema, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", userID)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	now := s.now().Unix()
	if user.OTPExpired(now) {
		return nil, apperrors.OTPExpired()
	}
	if !user.OTPMatches(otp) {
		return nil, apperrors.OTPInvalid()
	}

	user.RegisterStatus = domain.RegisterStatusOTPVerified
	user.ModifiedAt = now
	if err := s.store.Users().Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update register status: %w", err)
	}

	s.logger.InfoContext(ctx, "otp verified", slog.String("user_id", user.ID))

	schema := user.Schema()
	return &schema, nil
}

// ResetPassword sets a new password for an OTP-verified user, revokes all of
// its tokens and logs it in again. Users in any other status are not found.
func (s *AuthService) ResetPassword(ctx context.Context, userID, password string) (*domain.AuthResult, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	var (
		user *domain.User
		pair domain.TokenPair
	)
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		user, err = tx.Users().GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return apperrors.NotFound("user", userID)
			}
			return fmt.Errorf("get user: %w", err)
		}
		if user.RegisterStatus != domain.RegisterStatusOTPVerified {
			return apperrors.NotFound("user", userID)
		}

		now := s.now().Unix()
		user.PasswordHash = hash
		user.RegisterStatus = domain.RegisterStatusNormal
		user.PasswordChangedAt = now
		user.ModifiedAt = now
		if err := tx.Users().Update(ctx, user); err != nil {
			return fmt.Errorf("update password: %w", err)
		}

		if _, err := auth.NewLedger(tx.Tokens()).RevokeAll(ctx, user.ID); err != nil {
			return err
		}

		pair, err = s.issuePair(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.events.PublishPasswordReset(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish password.reset event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password reset", slog.String("user_id", user.ID))

	return authResult(user, pair), nil
}

// Refresh issues a new access token from a valid, unrevoked refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	claims, err := s.issuer.Parse(refreshToken, domain.TokenKindRefresh)
	if err != nil {
		return nil, err
	}

	revoked, err := s.ledger.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, apperrors.TokenRevoked()
	}

	user, err := s.store.Users().GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("user no longer exists")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !user.IsActive {
		return nil, apperrors.InactiveAccount()
	}

	userClaims, err := s.claimsFor(ctx, s.store, user)
	if err != nil {
		return nil, err
	}

	access, err := s.issuer.IssueAccess(ctx, s.ledger, user.ID, userClaims)
	if err != nil {
		return nil, err
	}

	return &RefreshResult{AccessToken: access}, nil
}

// Logout revokes the token with the given jti.
func (s *AuthService) Logout(ctx context.Context, jti string) error {
	if err := s.ledger.RevokeOne(ctx, jti); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "token revoked", slog.String("jti", jti))
	return nil
}

// ChangePassword replaces the password of the calling user, clears the
// forced-change flag and revokes every other token of the user. A new token
// pair carrying the cleared flag is returned.
func (s *AuthService) ChangePassword(ctx context.Context, input ChangePasswordInput) (*domain.AuthResult, error) {
	if input.CurrentPassword == input.NewPassword {
		return nil, apperrors.InvalidInput("new password must differ from the current one").
			WithData(map[string]string{"new_password": "must differ from the current password"})
	}
	hash, err := hashPassword(input.NewPassword)
	if err != nil {
		return nil, err
	}

	var (
		user *domain.User
		pair domain.TokenPair
	)
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		user, err = tx.Users().GetByID(ctx, input.UserID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return apperrors.NotFound("user", input.UserID)
			}
			return fmt.Errorf("get user: %w", err)
		}
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.CurrentPassword)) != nil {
			return apperrors.InvalidCredentials(apperrors.MsgWrongEmailPassword, "current password is incorrect")
		}

		now := s.now().Unix()
		user.PasswordHash = hash
		user.ForceChangePassword = false
		user.PasswordChangedAt = now
		user.ModifiedAt = now
		if err := tx.Users().Update(ctx, user); err != nil {
			return fmt.Errorf("update password: %w", err)
		}

		if _, err := auth.NewLedger(tx.Tokens()).RevokeAllExceptCurrent(ctx, user.ID, input.TokenID); err != nil {
			return err
		}

		pair, err = s.issuePair(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "password changed", slog.String("user_id", user.ID))

	return authResult(user, pair), nil
}

// Me returns the profile of userID.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.UserSchema, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", userID)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	schema := user.Schema()
	return &schema, nil
}

// PruneExpired deletes expired ledger rows.
func (s *AuthService) PruneExpired(ctx context.Context) (*PruneResult, error) {
	n, err := s.ledger.PruneExpired(ctx, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "pruned expired tokens", slog.Int64("count", n))
	return &PruneResult{Pruned: n}, nil
}

// --- helpers ---

func (s *AuthService) issuePair(ctx context.Context, store repository.Store, user *domain.User) (domain.TokenPair, error) {
	claims, err := s.claimsFor(ctx, store, user)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return s.issuer.IssuePair(ctx, auth.NewLedger(store.Tokens()), user.ID, claims)
}

func (s *AuthService) claimsFor(ctx context.Context, store repository.Store, user *domain.User) (auth.UserClaims, error) {
	perms, err := store.Permissions().ListByGroup(ctx, user.GroupID)
	if err != nil {
		return auth.UserClaims{}, fmt.Errorf("list permissions: %w", err)
	}
	return auth.UserClaims{
		ListPermission:      perms,
		ForceChangePassword: user.ForceChangePassword,
	}, nil
}

func authResult(user *domain.User, pair domain.TokenPair) *domain.AuthResult {
	return &domain.AuthResult{
		UserSchema:   user.Schema(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func randomOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
