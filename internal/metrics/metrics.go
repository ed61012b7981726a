package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SigningTotal counts signing requests by dispatch path and outcome.
	SigningTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_vault_signing_total",
		Help: "Signing requests by path (local, cluster, simulated) and outcome.",
	}, []string{"path", "outcome"})

	// CustodyTransitionsTotal counts custody state transitions.
	CustodyTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_vault_custody_transitions_total",
		Help: "Wallet custody transitions by target state.",
	}, []string{"to"})
)
