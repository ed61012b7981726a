package api

import (
	"context"

	"github.com/agentvault/agent-vault/internal/config"
	"github.com/agentvault/agent-vault/internal/ledger"
	"github.com/agentvault/agent-vault/internal/mpc"
	"github.com/agentvault/agent-vault/internal/router"
	"github.com/agentvault/agent-vault/internal/vault"
	"github.com/agentvault/agent-vault/internal/wallet"
	"github.com/pkg/errors"
)

// PROVIDERS - construction of each component from config, composed by
// InitNewServer. Kept here so wiring lives in one place.

func NewVault(cfg config.Server) *vault.Vault {
	return vault.New(cfg.Vault.KDFIterations)
}

func NewRegistry(cfg config.Server, v *vault.Vault) (*wallet.Registry, error) {
	return wallet.NewRegistry(cfg.Vault.Dir, v, cfg.Vault.Passphrase)
}

func NewClusterClient(cfg config.Server) (*mpc.Client, error) {
	return mpc.NewClient(mpc.ClientConfig{
		Endpoint:     cfg.Cluster.Endpoint,
		ProbeTimeout: cfg.Cluster.ProbeTimeout,
		PollInterval: cfg.Cluster.PollInterval,
		HTTPTimeout:  cfg.Cluster.HTTPTimeout,
		KeyFetch: mpc.RetryPolicy{
			MaxAttempts: cfg.Cluster.KeyFetchAttempts,
			Delay:       cfg.Cluster.KeyFetchDelay,
		},
	})
}

func NewLedgerClient(cfg config.Server) *ledger.Client {
	return ledger.New(cfg.Ledger.Endpoint, cfg.Ledger.Timeout)
}

func NewSigningRouter(cfg config.Server, registry *wallet.Registry, cluster *mpc.Client, ledgerClient *ledger.Client) *router.Router {
	return router.New(registry, cluster, ledgerClient, router.Config{
		MinBalance:   cfg.Ledger.MinBalance,
		AwaitTimeout: cfg.Cluster.AwaitTimeout,
	})
}

// InitNewServer builds the full service stack from config. The cluster
// computation definitions are registered before the server is handed
// back.
func InitNewServer(ctx context.Context, cfg config.Server) (*Server, error) {
	v := NewVault(cfg)

	registry, err := NewRegistry(cfg, v)
	if err != nil {
		return nil, errors.Wrap(err, "failed to init wallet registry")
	}

	cluster, err := NewClusterClient(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to init cluster client")
	}

	for _, circuit := range []string{mpc.CircuitSignTransaction, mpc.CircuitDistributeKey} {
		if err := cluster.InitCompDef(ctx, circuit); err != nil {
			_ = cluster.Close()
			return nil, err
		}
	}

	ledgerClient := NewLedgerClient(cfg)
	signing := NewSigningRouter(cfg, registry, cluster, ledgerClient)

	return NewServer(cfg, registry, signing, cluster, ledgerClient), nil
}
