package test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agentvault/agent-vault/internal/api"
	apirouter "github.com/agentvault/agent-vault/internal/api/router"
	"github.com/agentvault/agent-vault/internal/config"
	"github.com/stretchr/testify/require"
)

// DefaultTestBalance is what the stub ledger reports for every wallet.
const DefaultTestBalance uint64 = 1_000_000

// WithTestServer hands closure a fully wired server backed by a stub
// ledger and an unreachable cluster endpoint, so the MPC client runs in
// simulate mode and no external service is needed.
func WithTestServer(t *testing.T, closure func(s *api.Server)) {
	t.Helper()

	ledgerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      1,
			"result":  map[string]uint64{"value": DefaultTestBalance},
		})
	}))
	t.Cleanup(ledgerSrv.Close)

	cfg := config.DefaultServiceConfigFromEnv()
	cfg.Vault.Passphrase = "test-passphrase"
	cfg.Vault.KDFIterations = 1024
	cfg.Vault.Dir = t.TempDir()
	cfg.Cluster.Endpoint = "http://127.0.0.1:1"
	cfg.Cluster.ProbeTimeout = 50 * time.Millisecond
	cfg.Cluster.AwaitTimeout = time.Second
	cfg.Ledger.Endpoint = ledgerSrv.URL

	s, err := api.InitNewServer(context.Background(), cfg)
	require.NoError(t, err)
	apirouter.Init(s)
	t.Cleanup(func() { _ = s.Cluster.Close() })

	closure(s)
}
