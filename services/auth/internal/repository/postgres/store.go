package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ncsyvn/microservices-go/pkg/database"
	"github.com/ncsyvn/microservices-go/services/auth/internal/repository"
)

// Store implements repository.Store over a pool or a transaction.
type Store struct {
	db          database.TxStarter
	users       *UserRepository
	tokens      *TokenRepository
	permissions *PermissionRepository
}

// NewStore creates a store backed by db. A pgx.Tx is itself a TxStarter, so
// nested WithTx calls run as savepoints.
func NewStore(db database.TxStarter) *Store {
	return &Store{
		db:          db,
		users:       NewUserRepository(db),
		tokens:      NewTokenRepository(db),
		permissions: NewPermissionRepository(db),
	}
}

func (s *Store) Users() repository.UserRepository             { return s.users }
func (s *Store) Tokens() repository.TokenRepository           { return s.tokens }
func (s *Store) Permissions() repository.PermissionRepository { return s.permissions }

// WithTx runs fn inside a transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		return fn(NewStore(tx))
	})
}
