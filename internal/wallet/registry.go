package wallet

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agentvault/agent-vault/internal/util"
	"github.com/agentvault/agent-vault/internal/vault"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrWalletStateConflict is returned when an operation is attempted
// against a custody state that forbids it. Callers must not retry.
var ErrWalletStateConflict = errors.New("wallet state conflict")

// ErrWalletNotFound is returned when no record exists for an agent ID.
var ErrWalletNotFound = errors.New("wallet not found")

// Registry owns the set of wallet records, their custody state, and
// their on-disk persistence. The registry directory has no other
// writer.
type Registry struct {
	mu         sync.Mutex
	dir        string
	vault      *vault.Vault
	passphrase string
	files      map[string]*walletFile
}

// NewRegistry opens (creating if needed) the wallet directory. An
// empty passphrase is accepted: each wallet then falls back to its
// agent ID as the encryption password, which is logged as a risk.
func NewRegistry(dir string, v *vault.Vault, passphrase string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrapf(err, "failed to create wallet directory %s", dir)
	}
	if passphrase == "" {
		log.Warn().Msg("Wallet passphrase is empty, falling back to per-agent IDs as encryption passwords")
	}
	return &Registry{
		dir:        dir,
		vault:      v,
		passphrase: passphrase,
		files:      make(map[string]*walletFile),
	}, nil
}

func (r *Registry) path(agentID string) string {
	return filepath.Join(r.dir, agentID+".wallet.json")
}

func (r *Registry) passwordFor(agentID string) string {
	if r.passphrase == "" {
		return agentID
	}
	return r.passphrase
}

// load returns the cached file for agentID, reading it from disk on
// first access. Callers must hold r.mu.
func (r *Registry) load(agentID string) (*walletFile, error) {
	if f, ok := r.files[agentID]; ok {
		return f, nil
	}

	data, err := os.ReadFile(r.path(agentID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "failed to read wallet file for %s", agentID)
	}

	var f walletFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "failed to parse wallet file for %s", agentID)
	}
	if f.EncryptedStore == nil {
		return nil, errors.Errorf("wallet file for %s has no encrypted store", agentID)
	}

	r.files[agentID] = &f
	return &f, nil
}

// persist rewrites the wallet file atomically. Callers must hold r.mu.
func (r *Registry) persist(f *walletFile) error {
	f.SavedAt = time.Now().UTC()

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to encode wallet file for %s", f.AgentID)
	}
	if err := util.WriteFileAtomic(r.path(f.AgentID), data, 0o600); err != nil {
		return errors.Wrapf(err, "failed to persist wallet file for %s", f.AgentID)
	}
	return nil
}

// CreateOrLoad returns the wallet record for agentID, generating and
// persisting a fresh local keypair if none exists. Loading an existing
// record never mutates its custody state.
func (r *Registry) CreateOrLoad(agentID string) (*WalletRecord, error) {
	if agentID == "" {
		return nil, errors.New("empty agent ID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.load(agentID)
	if err == nil {
		log.Debug().
			Str("agent_id", agentID).
			Str("custody", string(f.Custody)).
			Msg("Loaded existing wallet record")
		return f.record(), nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate keypair")
	}
	seed := priv.Seed()

	store, err := r.vault.Encrypt(pub, seed, r.passwordFor(agentID))
	zero(seed)
	zero(priv)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encrypt secret for %s", agentID)
	}

	f = &walletFile{
		AgentID:        agentID,
		EncryptedStore: store,
		Custody:        CustodyLocal,
		CreatedAt:      time.Now().UTC(),
	}
	if err := r.persist(f); err != nil {
		return nil, err
	}
	r.files[agentID] = f

	log.Info().
		Str("agent_id", agentID).
		Str("address", f.record().Address()).
		Msg("Created new local wallet")

	return f.record(), nil
}

// Get returns the record for an already-persisted wallet.
func (r *Registry) Get(agentID string) (*WalletRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.load(agentID)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrWalletNotFound, "unknown wallet %s", agentID)
		}
		return nil, err
	}
	return f.record(), nil
}

// SignLocal signs message with the locally held secret. The decrypted
// secret's lifetime ends before SignLocal returns. Fails with
// ErrWalletStateConflict unless custody is local.
func (r *Registry) SignLocal(agentID string, message []byte) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.load(agentID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load wallet %s", agentID)
	}
	if f.Custody != CustodyLocal {
		return nil, errors.Wrapf(ErrWalletStateConflict,
			"cannot sign locally while custody is %s", f.Custody)
	}

	seed, err := r.vault.Decrypt(f.EncryptedStore, r.passwordFor(agentID))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decrypt secret for %s", agentID)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	sig := ed25519.Sign(priv, message)
	zero(seed)
	zero(priv)

	return sig, nil
}

// SealSecret decrypts the wallet secret and hands it to seal, which
// must return a ciphertext bound to the cluster's public encryption
// key. The plaintext is zeroed before SealSecret returns. Valid only
// while custody is distributing.
func (r *Registry) SealSecret(agentID string, seal func(secret []byte) ([]byte, error)) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.load(agentID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load wallet %s", agentID)
	}
	if f.Custody != CustodyDistributing {
		return nil, errors.Wrapf(ErrWalletStateConflict,
			"cannot seal secret while custody is %s", f.Custody)
	}

	seed, err := r.vault.Decrypt(f.EncryptedStore, r.passwordFor(agentID))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decrypt secret for %s", agentID)
	}
	sealed, sealErr := seal(seed)
	zero(seed)
	if sealErr != nil {
		return nil, errors.Wrapf(sealErr, "failed to seal secret for %s", agentID)
	}
	return sealed, nil
}

// BeginDistribution moves custody from local to distributing.
func (r *Registry) BeginDistribution(agentID string) error {
	return r.transition(agentID, CustodyDistributing, CustodyLocal)
}

// AbortDistribution moves custody back from distributing to local.
// This is the only backward edge in the custody state machine, used
// solely when the distribution handshake fails before confirmation.
func (r *Registry) AbortDistribution(agentID string) error {
	return r.transition(agentID, CustodyLocal, CustodyDistributing)
}

// MarkDistributed confirms distributed custody. Valid from local or
// distributing; irreversible once persisted.
func (r *Registry) MarkDistributed(agentID string) error {
	return r.transition(agentID, CustodyDistributed, CustodyLocal, CustodyDistributing)
}

func (r *Registry) transition(agentID string, to Custody, from ...Custody) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.load(agentID)
	if err != nil {
		return errors.Wrapf(err, "failed to load wallet %s", agentID)
	}

	allowed := false
	for _, c := range from {
		if f.Custody == c {
			allowed = true
			break
		}
	}
	if !allowed {
		return errors.Wrapf(ErrWalletStateConflict,
			"cannot move custody of %s from %s to %s", agentID, f.Custody, to)
	}

	prev := f.Custody
	f.Custody = to
	if err := r.persist(f); err != nil {
		f.Custody = prev
		return err
	}

	log.Info().
		Str("agent_id", agentID).
		Str("from", string(prev)).
		Str("to", string(to)).
		Msg("Wallet custody transition")

	return nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
