package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_tokens_issued_total",
		Help: "Tokens registered in the ledger, by kind.",
	}, []string{"kind"})

	tokensRevoked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_tokens_revoked_total",
		Help: "Ledger rows flipped to revoked, by operation.",
	}, []string{"op"})

	tokensPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_tokens_pruned_total",
		Help: "Expired ledger rows deleted.",
	})
)
