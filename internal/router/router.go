package router

import (
	"context"
	"crypto/ed25519"
	"sync"
	"time"

	"github.com/agentvault/agent-vault/internal/metrics"
	"github.com/agentvault/agent-vault/internal/mpc"
	"github.com/agentvault/agent-vault/internal/wallet"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrInsufficientResources is returned when the pre-flight balance
// check fails; surfaced before any signing dispatch.
var ErrInsufficientResources = errors.New("insufficient resources for signing dispatch")

// ClusterClient is the slice of the MPC client the router needs.
type ClusterClient interface {
	Submit(ctx context.Context, walletRef []byte, message [32]byte) (*mpc.SigningJob, error)
	AwaitResult(ctx context.Context, job *mpc.SigningJob, timeout time.Duration) (*mpc.SigningResult, error)
	DistributeKey(ctx context.Context, walletRef []byte, sealedSecret []byte, timeout time.Duration) error
	Seal(secret []byte) ([]byte, error)
	HasLiveConnection() bool
}

// BalanceSource is the slice of the ledger client the router needs for
// its pre-flight check.
type BalanceSource interface {
	GetBalance(ctx context.Context, publicKey ed25519.PublicKey) (uint64, error)
}

// Config tunes the router.
type Config struct {
	// MinBalance is the smallest ledger balance a wallet must hold
	// before a signing request is dispatched.
	MinBalance uint64
	// AwaitTimeout bounds how long a cluster signing job may take.
	AwaitTimeout time.Duration
}

// Router dispatches signing requests to whichever authority currently
// holds custody of the wallet, and orchestrates the one-way custody
// migration. Requests are serialized per agent.
type Router struct {
	registry *wallet.Registry
	cluster  ClusterClient
	balances BalanceSource
	cfg      Config

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Router. balances may be nil only in tests.
func New(registry *wallet.Registry, cluster ClusterClient, balances BalanceSource, cfg Config) *Router {
	if cfg.AwaitTimeout <= 0 {
		cfg.AwaitTimeout = 30 * time.Second
	}
	return &Router{
		registry: registry,
		cluster:  cluster,
		balances: balances,
		cfg:      cfg,
		locks:    make(map[string]*sync.Mutex),
	}
}

// agentLock returns the per-agent mutex, creating it on first use. At
// most one signing or migration operation is in flight per agent;
// concurrent requests against the same wallet would race the custody
// transition.
func (r *Router) agentLock(agentID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.locks[agentID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[agentID] = l
	}
	return l
}

// Sign produces a signature over message for the agent's wallet,
// routed through the currently valid authority.
func (r *Router) Sign(ctx context.Context, agentID string, message [32]byte) ([]byte, error) {
	l := r.agentLock(agentID)
	l.Lock()
	defer l.Unlock()

	rec, err := r.registry.Get(agentID)
	if err != nil {
		return nil, err
	}

	if err := r.preflight(ctx, rec); err != nil {
		metrics.SigningTotal.WithLabelValues("preflight", "rejected").Inc()
		return nil, err
	}

	switch rec.Custody {
	case wallet.CustodyLocal:
		sig, err := r.registry.SignLocal(agentID, message[:])
		if err != nil {
			metrics.SigningTotal.WithLabelValues("local", "error").Inc()
			return nil, err
		}
		metrics.SigningTotal.WithLabelValues("local", "ok").Inc()
		log.Debug().Str("agent_id", agentID).Msg("Signed locally")
		return sig, nil

	case wallet.CustodyDistributing:
		metrics.SigningTotal.WithLabelValues("cluster", "rejected").Inc()
		return nil, errors.Wrapf(wallet.ErrWalletStateConflict,
			"wallet %s is mid-migration, signing unavailable", agentID)

	case wallet.CustodyDistributed:
		sig, err := r.signRemote(ctx, rec, message)
		if err != nil {
			metrics.SigningTotal.WithLabelValues("cluster", "error").Inc()
			return nil, err
		}
		path := "cluster"
		if !r.cluster.HasLiveConnection() {
			path = "simulated"
		}
		metrics.SigningTotal.WithLabelValues(path, "ok").Inc()
		return sig, nil

	default:
		return nil, errors.Errorf("wallet %s has unknown custody state %q", agentID, rec.Custody)
	}
}

func (r *Router) signRemote(ctx context.Context, rec *wallet.WalletRecord, message [32]byte) ([]byte, error) {
	job, err := r.cluster.Submit(ctx, rec.PublicKey, message)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to submit signing job for %s", rec.AgentID)
	}

	result, err := r.cluster.AwaitResult(ctx, job, r.cfg.AwaitTimeout)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("agent_id", rec.AgentID).
		Uint64("correlation_id", job.CorrelationID).
		Bool("verified", result.Verified).
		Msg("Cluster signing completed")

	return result.Signature, nil
}

// preflight rejects requests that are doomed to fail downstream before
// any signing work or network dispatch happens.
func (r *Router) preflight(ctx context.Context, rec *wallet.WalletRecord) error {
	if r.balances == nil || r.cfg.MinBalance == 0 {
		return nil
	}

	balance, err := r.balances.GetBalance(ctx, rec.PublicKey)
	if err != nil {
		return errors.Wrapf(err, "pre-flight balance check for %s failed", rec.AgentID)
	}
	if balance < r.cfg.MinBalance {
		return errors.Wrapf(ErrInsufficientResources,
			"wallet %s holds %d, needs at least %d", rec.AgentID, balance, r.cfg.MinBalance)
	}
	return nil
}

// Distribute migrates the wallet's custody to the MPC cluster:
// local -> distributing -> distributed. If the distribution handshake
// fails before confirmation the wallet returns to local custody; once
// distributed there is no way back.
func (r *Router) Distribute(ctx context.Context, agentID string) error {
	l := r.agentLock(agentID)
	l.Lock()
	defer l.Unlock()

	rec, err := r.registry.Get(agentID)
	if err != nil {
		return err
	}

	if err := r.registry.BeginDistribution(agentID); err != nil {
		return err
	}

	sealed, err := r.registry.SealSecret(agentID, r.cluster.Seal)
	if err != nil {
		r.abort(agentID)
		return errors.Wrapf(err, "failed to prepare key distribution for %s", agentID)
	}

	if err := r.cluster.DistributeKey(ctx, rec.PublicKey, sealed, r.cfg.AwaitTimeout); err != nil {
		r.abort(agentID)
		return errors.Wrapf(err, "key distribution for %s failed", agentID)
	}

	if err := r.registry.MarkDistributed(agentID); err != nil {
		return errors.Wrapf(err, "failed to confirm distribution for %s", agentID)
	}
	metrics.CustodyTransitionsTotal.WithLabelValues(string(wallet.CustodyDistributed)).Inc()

	log.Info().
		Str("agent_id", agentID).
		Bool("live_cluster", r.cluster.HasLiveConnection()).
		Msg("Wallet custody distributed to MPC cluster")

	return nil
}

func (r *Router) abort(agentID string) {
	if err := r.registry.AbortDistribution(agentID); err != nil {
		log.Error().Err(err).Str("agent_id", agentID).Msg("Failed to roll back distribution state")
		return
	}
	metrics.CustodyTransitionsTotal.WithLabelValues(string(wallet.CustodyLocal)).Inc()
	log.Warn().Str("agent_id", agentID).Msg("Distribution handshake failed, custody returned to local")
}
