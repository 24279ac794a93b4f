package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/ncsyvn/microservices-go/pkg/errors"
	"github.com/ncsyvn/microservices-go/services/auth/internal/domain"
	"github.com/ncsyvn/microservices-go/services/auth/internal/repository"
)

// Ledger is the bookkeeping of issued tokens. Revocation is a one-way flag
// flip, so every revoke operation is idempotent.
type Ledger struct {
	tokens repository.TokenRepository
}

// NewLedger creates a ledger over tokens.
func NewLedger(tokens repository.TokenRepository) *Ledger {
	return &Ledger{tokens: tokens}
}

// Register stores a new, unrevoked row.
func (l *Ledger) Register(ctx context.Context, record *domain.TokenRecord) error {
	record.Revoked = false
	if err := l.tokens.Create(ctx, record); err != nil {
		return fmt.Errorf("create ledger row: %w", err)
	}
	tokensIssued.WithLabelValues(record.TokenType).Inc()
	return nil
}

// IsRevoked reports whether jti is revoked. A jti the ledger has never seen
// counts as revoked.
func (l *Ledger) IsRevoked(ctx context.Context, jti string) (bool, error) {
	record, err := l.tokens.GetByJTI(ctx, jti)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("look up token %s: %w", jti, err)
	}
	return record.Revoked, nil
}

// RevokeOne revokes a single token. Unknown or already revoked ids are a no-op.
func (l *Ledger) RevokeOne(ctx context.Context, jti string) error {
	n, err := l.tokens.Revoke(ctx, jti)
	if err != nil {
		return fmt.Errorf("revoke token %s: %w", jti, err)
	}
	tokensRevoked.WithLabelValues("one").Add(float64(n))
	return nil
}

// RevokeAll revokes every unrevoked token of the given users.
func (l *Ledger) RevokeAll(ctx context.Context, userIDs ...string) (int64, error) {
	n, err := l.tokens.RevokeByUsers(ctx, userIDs, "")
	if err != nil {
		return 0, fmt.Errorf("revoke user tokens: %w", err)
	}
	tokensRevoked.WithLabelValues("all").Add(float64(n))
	return n, nil
}

// RevokeAllExceptCurrent revokes every token of userID except currentJTI.
func (l *Ledger) RevokeAllExceptCurrent(ctx context.Context, userID, currentJTI string) (int64, error) {
	if currentJTI == "" {
		return 0, apperrors.InvalidInput("current token id is required")
	}
	n, err := l.tokens.RevokeByUsers(ctx, []string{userID}, currentJTI)
	if err != nil {
		return 0, fmt.Errorf("revoke other user tokens: %w", err)
	}
	tokensRevoked.WithLabelValues("all_except_current").Add(float64(n))
	return n, nil
}

// PruneExpired deletes rows that expired before now and returns how many
// were removed.
func (l *Ledger) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := l.tokens.DeleteExpired(ctx, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("prune expired tokens: %w", err)
	}
	tokensPruned.Add(float64(n))
	return n, nil
}
