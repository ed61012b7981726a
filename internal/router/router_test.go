package router_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/agentvault/agent-vault/internal/mpc"
	"github.com/agentvault/agent-vault/internal/router"
	"github.com/agentvault/agent-vault/internal/vault"
	"github.com/agentvault/agent-vault/internal/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCluster satisfies router.ClusterClient without any network.
type fakeCluster struct {
	mu             sync.Mutex
	live           bool
	failDistribute bool
	submitted      []uint64
	distributed    [][]byte
}

func (f *fakeCluster) Submit(ctx context.Context, walletRef []byte, message [32]byte) (*mpc.SigningJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uint64(len(f.submitted) + 1)
	f.submitted = append(f.submitted, id)
	return &mpc.SigningJob{CorrelationID: id, Circuit: mpc.CircuitSignTransaction, Message: message}, nil
}

func (f *fakeCluster) AwaitResult(ctx context.Context, job *mpc.SigningJob, timeout time.Duration) (*mpc.SigningResult, error) {
	sig := make([]byte, ed25519.SignatureSize)
	_, _ = rand.Read(sig)
	return &mpc.SigningResult{Signature: sig, Verified: f.live, FinalizedAt: time.Now()}, nil
}

func (f *fakeCluster) DistributeKey(ctx context.Context, walletRef []byte, sealedSecret []byte, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDistribute {
		return mpc.ErrComputationTimeout
	}
	f.distributed = append(f.distributed, sealedSecret)
	return nil
}

func (f *fakeCluster) Seal(secret []byte) ([]byte, error) {
	sealed := append([]byte("sealed:"), secret...)
	return sealed, nil
}

func (f *fakeCluster) HasLiveConnection() bool { return f.live }

type fakeBalances struct {
	balance uint64
	err     error
	calls   int
}

func (f *fakeBalances) GetBalance(ctx context.Context, publicKey ed25519.PublicKey) (uint64, error) {
	f.calls++
	return f.balance, f.err
}

func newFixture(t *testing.T) (*wallet.Registry, *fakeCluster, *fakeBalances, *router.Router) {
	t.Helper()
	reg, err := wallet.NewRegistry(t.TempDir(), vault.New(1024), "test-passphrase")
	require.NoError(t, err)

	cluster := &fakeCluster{live: true}
	balances := &fakeBalances{balance: 1_000_000}
	r := router.New(reg, cluster, balances, router.Config{
		MinBalance:   5000,
		AwaitTimeout: time.Second,
	})
	return reg, cluster, balances, r
}

func digest(s string) [32]byte {
	var d [32]byte
	copy(d[:], s)
	return d
}

func TestSignLocalCustody(t *testing.T) {
	reg, cluster, _, r := newFixture(t)
	rec, err := reg.CreateOrLoad("agent-1")
	require.NoError(t, err)

	msg := digest("trade payload digest")
	sig, err := r.Sign(context.Background(), "agent-1", msg)
	require.NoError(t, err)

	assert.True(t, ed25519.Verify(rec.PublicKey, msg[:], sig))
	assert.Empty(t, cluster.submitted, "local custody must not touch the cluster")
}

func TestSignDistributedCustody(t *testing.T) {
	reg, cluster, _, r := newFixture(t)
	_, err := reg.CreateOrLoad("agent-1")
	require.NoError(t, err)

	require.NoError(t, r.Distribute(context.Background(), "agent-1"))

	sig, err := r.Sign(context.Background(), "agent-1", digest("m"))
	require.NoError(t, err)
	assert.Len(t, sig, ed25519.SignatureSize)
	assert.Len(t, cluster.submitted, 1)
}

func TestSignRejectedWhileDistributing(t *testing.T) {
	reg, _, _, r := newFixture(t)
	_, err := reg.CreateOrLoad("agent-1")
	require.NoError(t, err)
	require.NoError(t, reg.BeginDistribution("agent-1"))

	_, err = r.Sign(context.Background(), "agent-1", digest("m"))
	assert.ErrorIs(t, err, wallet.ErrWalletStateConflict)
}

func TestPreflightInsufficientResources(t *testing.T) {
	reg, cluster, balances, r := newFixture(t)
	_, err := reg.CreateOrLoad("agent-1")
	require.NoError(t, err)

	balances.balance = 100

	_, err = r.Sign(context.Background(), "agent-1", digest("m"))
	assert.ErrorIs(t, err, router.ErrInsufficientResources)
	assert.Empty(t, cluster.submitted, "pre-flight failure must precede any dispatch")
}

func TestDistributeSealsAndConfirms(t *testing.T) {
	reg, cluster, _, r := newFixture(t)
	_, err := reg.CreateOrLoad("agent-1")
	require.NoError(t, err)

	require.NoError(t, r.Distribute(context.Background(), "agent-1"))

	rec, err := reg.Get("agent-1")
	require.NoError(t, err)
	assert.Equal(t, wallet.CustodyDistributed, rec.Custody)

	require.Len(t, cluster.distributed, 1)
	assert.Contains(t, string(cluster.distributed[0]), "sealed:")

	// Local signing is gone for good.
	_, err = reg.SignLocal("agent-1", []byte("m"))
	assert.ErrorIs(t, err, wallet.ErrWalletStateConflict)
}

func TestDistributeHandshakeFailureRollsBack(t *testing.T) {
	reg, cluster, _, r := newFixture(t)
	rec, err := reg.CreateOrLoad("agent-1")
	require.NoError(t, err)

	cluster.failDistribute = true
	err = r.Distribute(context.Background(), "agent-1")
	require.Error(t, err)

	// Backward edge: handshake failure returns custody to local.
	got, err := reg.Get("agent-1")
	require.NoError(t, err)
	assert.Equal(t, wallet.CustodyLocal, got.Custody)

	// And signing still works locally.
	msg := digest("m")
	sig, err := r.Sign(context.Background(), "agent-1", msg)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(rec.PublicKey, msg[:], sig))
}

func TestDistributeTwiceConflicts(t *testing.T) {
	reg, _, _, r := newFixture(t)
	_, err := reg.CreateOrLoad("agent-1")
	require.NoError(t, err)

	require.NoError(t, r.Distribute(context.Background(), "agent-1"))
	err = r.Distribute(context.Background(), "agent-1")
	assert.ErrorIs(t, err, wallet.ErrWalletStateConflict)
}

func TestPerAgentSerialization(t *testing.T) {
	reg, _, _, r := newFixture(t)
	_, err := reg.CreateOrLoad("agent-1")
	require.NoError(t, err)

	// Hammer the same wallet concurrently; every request must come
	// back signed, with the router serializing access per agent.
	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = r.Sign(context.Background(), "agent-1", digest("m"))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestSignUnknownWallet(t *testing.T) {
	_, _, _, r := newFixture(t)
	_, err := r.Sign(context.Background(), "ghost", digest("m"))
	require.Error(t, err)
}
