package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ncsyvn/microservices-go/pkg/database"
	apperrors "github.com/ncsyvn/microservices-go/pkg/errors"
	"github.com/ncsyvn/microservices-go/services/auth/internal/domain"
)

// TokenRepository implements repository.TokenRepository using PostgreSQL.
type TokenRepository struct {
	db database.DBTX
}

// NewTokenRepository creates a new PostgreSQL-backed token ledger repository.
func NewTokenRepository(db database.DBTX) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create inserts a ledger row.
func (r *TokenRepository) Create(ctx context.Context, t *domain.TokenRecord) (err error) {
	query := `
		INSERT INTO tokens (id, jti, token_type, user_identity, expires, revoked)
		VALUES ($1, $2, $3, $4, $5, $6)`

	ctx, end := database.TraceQuery(ctx, "CreateToken", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query, t.ID, t.JTI, t.TokenType, t.UserIdentity, t.Expires, t.Revoked)
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// GetByJTI retrieves the ledger row of jti.
func (r *TokenRepository) GetByJTI(ctx context.Context, jti string) (_ *domain.TokenRecord, err error) {
	query := `
		SELECT id, jti, token_type, user_identity, expires, revoked
		FROM tokens
		WHERE jti = $1`

	ctx, end := database.TraceQuery(ctx, "GetTokenByJTI", query)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	var t domain.TokenRecord
	err = r.db.QueryRow(ctx, query, jti).Scan(
		&t.ID,
		&t.JTI,
		&t.TokenType,
		&t.UserIdentity,
		&t.Expires,
		&t.Revoked,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan token: %w", err)
	}
	return &t, nil
}

// Revoke flags the row of jti. An absent or already revoked row changes nothing.
func (r *TokenRepository) Revoke(ctx context.Context, jti string) (_ int64, err error) {
	query := `UPDATE tokens SET revoked = TRUE WHERE jti = $1 AND revoked = FALSE`

	ctx, end := database.TraceQuery(ctx, "RevokeToken", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, jti)
	if err != nil {
		return 0, fmt.Errorf("revoke token: %w", err)
	}
	return ct.RowsAffected(), nil
}

// RevokeByUsers flags every unrevoked row of userIDs, sparing exceptJTI.
func (r *TokenRepository) RevokeByUsers(ctx context.Context, userIDs []string, exceptJTI string) (_ int64, err error) {
	if len(userIDs) == 0 {
		return 0, nil
	}

	query := `
		UPDATE tokens SET revoked = TRUE
		WHERE user_identity = ANY($1) AND revoked = FALSE AND jti <> $2`

	ctx, end := database.TraceQuery(ctx, "RevokeTokensByUsers", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, userIDs, exceptJTI)
	if err != nil {
		return 0, fmt.Errorf("revoke user tokens: %w", err)
	}
	return ct.RowsAffected(), nil
}

// DeleteExpired removes rows that expired before the given epoch second.
func (r *TokenRepository) DeleteExpired(ctx context.Context, before int64) (_ int64, err error) {
	query := `DELETE FROM tokens WHERE expires < $1`

	ctx, end := database.TraceQuery(ctx, "DeleteExpiredTokens", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return ct.RowsAffected(), nil
}
