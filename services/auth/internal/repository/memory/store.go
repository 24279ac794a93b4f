// Package memory is an in-process repository.Store used by tests and by the
// service when it runs without PostgreSQL.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	apperrors "github.com/ncsyvn/microservices-go/pkg/errors"
	"github.com/ncsyvn/microservices-go/services/auth/internal/domain"
	"github.com/ncsyvn/microservices-go/services/auth/internal/repository"
)

type state struct {
	users       map[string]domain.User
	tokens      map[string]domain.TokenRecord
	permissions map[string][]string
}

// overlay holds the writes of an open transaction. Reads inside the
// transaction see it on top of the committed state; commit folds it in and
// rollback simply drops it, so writes made outside the transaction survive.
type overlay struct {
	users   map[string]domain.User
	tokens  map[string]domain.TokenRecord
	dropped map[string]struct{}
}

func newOverlay() *overlay {
	return &overlay{
		users:   make(map[string]domain.User),
		tokens:  make(map[string]domain.TokenRecord),
		dropped: make(map[string]struct{}),
	}
}

// Store keeps users, ledger rows and permission groups in maps. Transactions
// are serialized and buffer their writes until commit.
type Store struct {
	mu    *sync.Mutex
	txMu  *sync.Mutex
	state *state
	tx    *overlay
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		mu:   &sync.Mutex{},
		txMu: &sync.Mutex{},
		state: &state{
			users:       make(map[string]domain.User),
			tokens:      make(map[string]domain.TokenRecord),
			permissions: make(map[string][]string),
		},
	}
}

// SetPermissions replaces the route keys of groupID.
func (s *Store) SetPermissions(groupID string, permissions ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := slices.Clone(permissions)
	slices.Sort(p)
	s.state.permissions[groupID] = p
}

// TokenRecords returns a copy of every ledger row of userID.
func (s *Store) TokenRecords(userID string) []domain.TokenRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TokenRecord
	for _, t := range s.state.tokens {
		if t.UserIdentity == userID {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b domain.TokenRecord) int {
		switch {
		case a.JTI < b.JTI:
			return -1
		case a.JTI > b.JTI:
			return 1
		}
		return 0
	})
	return out
}

func (s *Store) Users() repository.UserRepository             { return userRepo{s} }
func (s *Store) Tokens() repository.TokenRepository           { return tokenRepo{s} }
func (s *Store) Permissions() repository.PermissionRepository { return permissionRepo{s} }

// WithTx runs fn against a transactional view of the store. The view's
// writes become visible to others only when fn returns nil. Nested calls
// join the outer transaction.
func (s *Store) WithTx(_ context.Context, fn func(tx repository.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &Store{mu: s.mu, txMu: s.txMu, state: s.state, tx: newOverlay()}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.commit(tx.tx)
	return nil
}

// commit folds o into the shared state. Revocation is one-way: a row revoked
// outside the transaction stays revoked.
func (s *Store) commit(o *overlay) {
	maps.Copy(s.state.users, o.users)
	for jti, t := range o.tokens {
		if cur, ok := s.state.tokens[jti]; ok && cur.Revoked {
			t.Revoked = true
		}
		s.state.tokens[jti] = t
	}
	for jti := range o.dropped {
		delete(s.state.tokens, jti)
	}
}

// The helpers below expect s.mu to be held.

func (s *Store) user(id string) (domain.User, bool) {
	if s.tx != nil {
		if u, ok := s.tx.users[id]; ok {
			return u, true
		}
	}
	u, ok := s.state.users[id]
	return u, ok
}

func (s *Store) eachUser(fn func(domain.User)) {
	for id, u := range s.state.users {
		if s.tx != nil {
			if _, shadowed := s.tx.users[id]; shadowed {
				continue
			}
		}
		fn(u)
	}
	if s.tx != nil {
		for _, u := range s.tx.users {
			fn(u)
		}
	}
}

func (s *Store) putUser(u domain.User) {
	if s.tx != nil {
		s.tx.users[u.ID] = u
		return
	}
	s.state.users[u.ID] = u
}

func (s *Store) token(jti string) (domain.TokenRecord, bool) {
	if s.tx != nil {
		if _, gone := s.tx.dropped[jti]; gone {
			return domain.TokenRecord{}, false
		}
		if t, ok := s.tx.tokens[jti]; ok {
			return t, true
		}
	}
	t, ok := s.state.tokens[jti]
	return t, ok
}

func (s *Store) eachToken(fn func(domain.TokenRecord)) {
	for jti, t := range s.state.tokens {
		if s.tx != nil {
			_, shadowed := s.tx.tokens[jti]
			_, gone := s.tx.dropped[jti]
			if shadowed || gone {
				continue
			}
		}
		fn(t)
	}
	if s.tx != nil {
		for _, t := range s.tx.tokens {
			fn(t)
		}
	}
}

func (s *Store) putToken(t domain.TokenRecord) {
	if s.tx != nil {
		delete(s.tx.dropped, t.JTI)
		s.tx.tokens[t.JTI] = t
		return
	}
	s.state.tokens[t.JTI] = t
}

func (s *Store) dropToken(jti string) {
	if s.tx != nil {
		delete(s.tx.tokens, jti)
		s.tx.dropped[jti] = struct{}{}
		return
	}
	delete(s.state.tokens, jti)
}

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var dup bool
	r.s.eachUser(func(existing domain.User) {
		if u.Email != "" && existing.Email == u.Email {
			dup = true
		}
	})
	if dup {
		return apperrors.AlreadyExists("user", "email", u.Email)
	}
	if _, ok := r.s.user(u.ID); ok {
		return apperrors.AlreadyExists("user", "id", u.ID)
	}
	r.s.putUser(*u)
	return nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.user(id)
	if !ok || u.IsDeleted {
		return nil, apperrors.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Email == email })
}

func (r userRepo) GetByPhone(_ context.Context, phones []string, minStatus int) (*domain.User, error) {
	return r.find(func(u domain.User) bool {
		return u.Phone != "" && slices.Contains(phones, u.Phone) && u.RegisterStatus >= minStatus
	})
}

func (r userRepo) find(match func(domain.User) bool) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var found *domain.User
	r.s.eachUser(func(u domain.User) {
		if u.IsDeleted || !match(u) {
			return
		}
		if found == nil || u.CreatedAt < found.CreatedAt {
			found = &u
		}
	})
	if found == nil {
		return nil, apperrors.ErrNotFound
	}
	return found, nil
}

func (r userRepo) Update(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.user(u.ID)
	if !ok || existing.IsDeleted {
		return apperrors.NotFound("user", u.ID)
	}
	r.s.putUser(*u)
	return nil
}

type tokenRepo struct{ s *Store }

func (r tokenRepo) Create(_ context.Context, t *domain.TokenRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.token(t.JTI); ok {
		return apperrors.AlreadyExists("token", "jti", t.JTI)
	}
	r.s.putToken(*t)
	return nil
}

func (r tokenRepo) GetByJTI(_ context.Context, jti string) (*domain.TokenRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.token(jti)
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &t, nil
}

func (r tokenRepo) Revoke(_ context.Context, jti string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.token(jti)
	if !ok || t.Revoked {
		return 0, nil
	}
	t.Revoked = true
	r.s.putToken(t)
	return 1, nil
}

func (r tokenRepo) RevokeByUsers(_ context.Context, userIDs []string, exceptJTI string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var revoke []domain.TokenRecord
	r.s.eachToken(func(t domain.TokenRecord) {
		if !t.Revoked && t.JTI != exceptJTI && slices.Contains(userIDs, t.UserIdentity) {
			revoke = append(revoke, t)
		}
	})
	for _, t := range revoke {
		t.Revoked = true
		r.s.putToken(t)
	}
	return int64(len(revoke)), nil
}

func (r tokenRepo) DeleteExpired(_ context.Context, before int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var expired []string
	r.s.eachToken(func(t domain.TokenRecord) {
		if t.Expires < before {
			expired = append(expired, t.JTI)
		}
	})
	for _, jti := range expired {
		r.s.dropToken(jti)
	}
	return int64(len(expired)), nil
}

type permissionRepo struct{ s *Store }

func (r permissionRepo) ListByGroup(_ context.Context, groupID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p := slices.Clone(r.s.state.permissions[groupID])
	if p == nil {
		p = make([]string, 0)
	}
	return p, nil
}
