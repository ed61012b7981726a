package types

import (
	"time"

	"github.com/pkg/errors"
)

// PostCreateWalletPayload requests creation (or idempotent load) of an
// agent wallet.
type PostCreateWalletPayload struct {
	AgentID *string `json:"agent_id"`
}

func (p *PostCreateWalletPayload) Validate() error {
	if p.AgentID == nil || *p.AgentID == "" {
		return errors.New("agent_id is required")
	}
	return nil
}

// PostSignPayload carries the 32-byte message digest to sign, hex
// encoded.
type PostSignPayload struct {
	MessageHex *string `json:"message_hex"`
}

func (p *PostSignPayload) Validate() error {
	if p.MessageHex == nil || *p.MessageHex == "" {
		return errors.New("message_hex is required")
	}
	return nil
}

// WalletResponse describes one agent wallet.
type WalletResponse struct {
	AgentID   *string   `json:"agent_id"`
	Address   *string   `json:"address"`
	PublicKey *string   `json:"public_key"`
	Custody   *string   `json:"custody"`
	CreatedAt time.Time `json:"created_at"`
}

// SignResponse carries the produced signature.
type SignResponse struct {
	AgentID         *string `json:"agent_id"`
	SignatureBase58 *string `json:"signature_base58"`
	Verified        bool    `json:"verified"`
	Custody         *string `json:"custody"`
}
