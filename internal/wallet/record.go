package wallet

import (
	"crypto/ed25519"
	"time"

	"github.com/agentvault/agent-vault/internal/vault"
	"github.com/btcsuite/btcutil/base58"
)

// Custody names the authority that currently holds signing power over
// a wallet.
type Custody string

const (
	// CustodyLocal: the secret lives in the encrypted local store and
	// signing happens in-process.
	CustodyLocal Custody = "local"
	// CustodyDistributing: migration to the cluster is in flight;
	// signing is rejected until it settles.
	CustodyDistributing Custody = "distributing"
	// CustodyDistributed: the cluster holds the key shares. Terminal
	// state; no code path re-derives a raw secret from it.
	CustodyDistributed Custody = "distributed"
)

// WalletRecord is the public view of one agent wallet.
type WalletRecord struct {
	AgentID   string            `json:"agent_id"`
	PublicKey ed25519.PublicKey `json:"public_key"`
	Custody   Custody           `json:"custody"`
	CreatedAt time.Time         `json:"created_at"`
}

// Address renders the public key as a base58 ledger address.
func (r *WalletRecord) Address() string {
	return base58.Encode(r.PublicKey)
}

// walletFile is the persisted form, one file per agent. The encrypted
// store is retained after distribution for audit; it is no longer the
// signing path once custody is distributed.
type walletFile struct {
	AgentID        string                   `json:"agent_id"`
	EncryptedStore *vault.EncryptedKeyStore `json:"encrypted_store"`
	Custody        Custody                  `json:"custody"`
	CreatedAt      time.Time                `json:"created_at"`
	SavedAt        time.Time                `json:"saved_at"`
}

func (f *walletFile) record() *WalletRecord {
	return &WalletRecord{
		AgentID:   f.AgentID,
		PublicKey: append(ed25519.PublicKey(nil), f.EncryptedStore.PublicKey...),
		Custody:   f.Custody,
		CreatedAt: f.CreatedAt,
	}
}
