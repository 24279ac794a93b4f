package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ncsyvn/microservices-go/pkg/errors"
	"github.com/ncsyvn/microservices-go/services/auth/internal/domain"
)

func newTokenTestFixture(t *testing.T) (*TokenRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return NewTokenRepository(mock), mock
}

func sampleToken() *domain.TokenRecord {
	return &domain.TokenRecord{
		ID:           "t-1",
		JTI:          "jti-1",
		TokenType:    domain.TokenKindAccess,
		UserIdentity: "u1",
		Expires:      1700086400,
	}
}

func TestTokenRepository_Create(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	tok := sampleToken()
	mock.ExpectExec("INSERT INTO tokens").
		WithArgs(tok.ID, tok.JTI, tok.TokenType, tok.UserIdentity, tok.Expires, false).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), tok))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_GetByJTI(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	tok := sampleToken()
	tok.Revoked = true
	mock.ExpectQuery("SELECT .+ FROM tokens WHERE jti =").
		WithArgs(tok.JTI).
		WillReturnRows(pgxmock.NewRows([]string{"id", "jti", "token_type", "user_identity", "expires", "revoked"}).
			AddRow(tok.ID, tok.JTI, tok.TokenType, tok.UserIdentity, tok.Expires, tok.Revoked))

	got, err := repo.GetByJTI(context.Background(), tok.JTI)
	require.NoError(t, err)
	assert.Equal(t, tok, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_GetByJTI_NotFound(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM tokens WHERE jti =").
		WithArgs("unknown").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByJTI(context.Background(), "unknown")
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestTokenRepository_Revoke(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE tokens SET revoked = TRUE WHERE jti =").
		WithArgs("jti-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE tokens SET revoked = TRUE WHERE jti =").
		WithArgs("jti-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	n, err := repo.Revoke(context.Background(), "jti-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.Revoke(context.Background(), "jti-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_RevokeByUsers(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE tokens SET revoked = TRUE").
		WithArgs([]string{"u1", "u2"}, "keep-me").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := repo.RevokeByUsers(context.Background(), []string{"u1", "u2"}, "keep-me")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_RevokeByUsers_NoUsers(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	n, err := repo.RevokeByUsers(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_DeleteExpired(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM tokens WHERE expires <").
		WithArgs(int64(1700000000)).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	n, err := repo.DeleteExpired(context.Background(), 1700000000)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_DeleteExpired_DBError(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM tokens").
		WithArgs(int64(5)).
		WillReturnError(fmt.Errorf("disk full"))

	_, err := repo.DeleteExpired(context.Background(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete expired tokens")
}
