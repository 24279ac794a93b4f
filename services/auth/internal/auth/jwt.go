package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/ncsyvn/microservices-go/pkg/errors"
	"github.com/ncsyvn/microservices-go/pkg/middleware"
	"github.com/ncsyvn/microservices-go/services/auth/internal/domain"
)

const issuerName = "auth-service"

// UserClaims is the payload embedded in every token.
type UserClaims struct {
	ListPermission      []string `json:"list_permission"`
	ForceChangePassword bool     `json:"force_change_password"`
}

// TokenClaims represents the JWT claims of an access or refresh token.
type TokenClaims struct {
	Type       string     `json:"type"`
	UserClaims UserClaims `json:"user_claims"`
	jwt.RegisteredClaims
}

// GateClaims converts the token claims to the form the authorization gate uses.
func (c *TokenClaims) GateClaims() *middleware.Claims {
	perms := c.UserClaims.ListPermission
	if perms == nil {
		perms = []string{}
	}
	return &middleware.Claims{
		Subject:             c.Subject,
		TokenID:             c.ID,
		Kind:                c.Type,
		Permissions:         perms,
		ForceChangePassword: c.UserClaims.ForceChangePassword,
	}
}

// Registrar records issued tokens. *Ledger implements it; passing a ledger
// bound to a transaction keeps issuance inside that transaction.
type Registrar interface {
	Register(ctx context.Context, record *domain.TokenRecord) error
}

// Issuer signs HS256 access and refresh tokens and registers each one.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewIssuer creates an issuer with the given secret and token lifetimes.
func NewIssuer(secret string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// IssuePair issues an access and a refresh token for subject.
func (i *Issuer) IssuePair(ctx context.Context, reg Registrar, subject string, claims UserClaims) (domain.TokenPair, error) {
	access, err := i.issue(ctx, reg, domain.TokenKindAccess, subject, claims, i.accessTTL)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, err := i.issue(ctx, reg, domain.TokenKindRefresh, subject, claims, i.refreshTTL)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// IssueAccess issues a single access token for subject.
func (i *Issuer) IssueAccess(ctx context.Context, reg Registrar, subject string, claims UserClaims) (string, error) {
	return i.issue(ctx, reg, domain.TokenKindAccess, subject, claims, i.accessTTL)
}

func (i *Issuer) issue(ctx context.Context, reg Registrar, kind, subject string, claims UserClaims, ttl time.Duration) (string, error) {
	now := i.now().UTC()
	expires := now.Add(ttl)
	jti := uuid.NewString()

	tc := &TokenClaims{
		Type:       kind,
		UserClaims: claims,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   subject,
			Issuer:    issuerName,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tc).SignedString(i.secret)
	if err != nil {
		return "", apperrors.Internal(fmt.Errorf("sign %s token: %w", kind, err))
	}

	record := &domain.TokenRecord{
		ID:           uuid.NewString(),
		JTI:          jti,
		TokenType:    kind,
		UserIdentity: subject,
		Expires:      expires.Unix(),
	}
	if err := reg.Register(ctx, record); err != nil {
		return "", fmt.Errorf("register %s token: %w", kind, err)
	}

	return signed, nil
}

// Parse verifies signature, expiry and kind of a token. Expired tokens yield
// an error matching apperrors.ErrTokenExpired.
func (i *Issuer) Parse(tokenString, kind string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.TokenExpired()
		}
		return nil, apperrors.Unauthorized("invalid token")
	}
	if !token.Valid {
		return nil, apperrors.Unauthorized("invalid token")
	}
	if claims.Type != kind {
		return nil, apperrors.Unauthorized(fmt.Sprintf("%s token required", kind))
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, apperrors.Unauthorized("token is missing identity claims")
	}
	return claims, nil
}

// Verify implements middleware.Verifier for access tokens.
func (i *Issuer) Verify(_ context.Context, token string) (*middleware.Claims, error) {
	claims, err := i.Parse(token, domain.TokenKindAccess)
	if err != nil {
		return nil, err
	}
	return claims.GateClaims(), nil
}
