package auth

import (
	"context"
	"log/slog"
	"time"
)

// Pruner periodically removes expired ledger rows.
type Pruner struct {
	ledger   *Ledger
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewPruner creates a pruner running every interval.
func NewPruner(ledger *Ledger, interval time.Duration, logger *slog.Logger) *Pruner {
	return &Pruner{ledger: ledger, interval: interval, logger: logger, now: time.Now}
}

// Run prunes on every tick until ctx is canceled. A non-positive interval
// disables the pruner.
func (p *Pruner) Run(ctx context.Context) {
	if p.interval <= 0 {
		p.logger.Info("token pruner disabled")
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = p.PruneOnce(ctx)
		}
	}
}

// PruneOnce runs a single prune and logs its outcome.
func (p *Pruner) PruneOnce(ctx context.Context) (int64, error) {
	n, err := p.ledger.PruneExpired(ctx, p.now())
	if err != nil {
		p.logger.ErrorContext(ctx, "token prune failed", slog.String("error", err.Error()))
		return 0, err
	}
	if n > 0 {
		p.logger.InfoContext(ctx, "pruned expired tokens", slog.Int64("count", n))
	}
	return n, nil
}
