package repository

import (
	"context"

	"github.com/ncsyvn/microservices-go/services/auth/internal/domain"
)

// UserRepository defines the persistence operations of the credential store.
type UserRepository interface {
	// Create inserts a new user.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a non-deleted user by id.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a non-deleted user by email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetByPhone retrieves a non-deleted user whose phone is one of phones and
	// whose register status is at least minStatus.
	GetByPhone(ctx context.Context, phones []string, minStatus int) (*domain.User, error)

	// Update writes every mutable field of user.
	Update(ctx context.Context, user *domain.User) error
}

// TokenRepository defines the persistence operations of the token ledger.
type TokenRepository interface {
	// Create inserts a ledger row.
	Create(ctx context.Context, record *domain.TokenRecord) error

	// GetByJTI retrieves the row of jti. A missing row is apperrors.ErrNotFound.
	GetByJTI(ctx context.Context, jti string) (*domain.TokenRecord, error)

	// Revoke flags the row of jti and returns the number of rows changed.
	Revoke(ctx context.Context, jti string) (int64, error)

	// RevokeByUsers flags every unrevoked row of userIDs except exceptJTI
	// (ignored when empty) and returns the number of rows changed.
	RevokeByUsers(ctx context.Context, userIDs []string, exceptJTI string) (int64, error)

	// DeleteExpired removes rows whose expiry is before the given epoch second.
	DeleteExpired(ctx context.Context, before int64) (int64, error)
}

// PermissionRepository reads permission groups.
type PermissionRepository interface {
	// ListByGroup returns the route keys granted to groupID, sorted.
	ListByGroup(ctx context.Context, groupID string) ([]string, error)
}

// Store groups the repositories so that multi-table mutations can run in a
// single transaction.
type Store interface {
	Users() UserRepository
	Tokens() TokenRepository
	Permissions() PermissionRepository

	// WithTx runs fn with a Store bound to one transaction. The transaction
	// commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}
