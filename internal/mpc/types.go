package mpc

import (
	"crypto/ed25519"
	"time"
)

// Circuit names registered with the cluster. One computation
// definition is initialized per circuit before first use.
const (
	CircuitSignTransaction = "sign_transaction"
	CircuitDistributeKey   = "distribute_key"
)

// RetryPolicy bounds a retried operation: at most MaxAttempts tries
// with a fixed Delay between them.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// ClusterKeys are the cluster's published keys: the Ed25519 key its
// outputs verify against and the X25519 key secrets are sealed to.
type ClusterKeys struct {
	VerifyingKey  ed25519.PublicKey
	EncryptionKey [32]byte
}

// SigningJob tracks one submitted computation. It is consumed exactly
// once and discarded after result delivery or terminal failure; a
// retry after timeout must use a fresh job with a new correlation ID.
type SigningJob struct {
	CorrelationID uint64
	Circuit       string
	Message       [32]byte
	WalletRef     []byte
	SubmittedAt   time.Time

	// result resolves exactly once; first delivery wins.
	result    chan *SigningResult
	simulated bool
}

// SigningResult is ephemeral: returned to the caller and discarded.
// Verified is true only when the signature checked out against the
// cluster verifying key; simulate mode never claims verification.
type SigningResult struct {
	Signature   []byte
	Verified    bool
	FinalizedAt time.Time
}

type submitRequest struct {
	CorrelationID string `json:"correlation_id"`
	Circuit       string `json:"circuit"`
	WalletRef     string `json:"wallet_ref"`
	Message       string `json:"message,omitempty"`
	Payload       string `json:"payload,omitempty"`
}

type submitResponse struct {
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

const (
	statusPending   = "pending"
	statusFinalized = "finalized"
	statusFailed    = "failed"
)

type clusterKeysResponse struct {
	VerifyingKey  string `json:"verifying_key"`
	EncryptionKey string `json:"encryption_key"`
}

// completionEvent is the asynchronous notification delivered over the
// event subscription once the cluster finishes a computation.
type completionEvent struct {
	Type          string `json:"type"`
	CorrelationID string `json:"correlation_id"`
	Signature     string `json:"signature,omitempty"`
	FinalizedAt   string `json:"finalized_at,omitempty"`
}

const (
	eventSignCompleted       = "sign_completed"
	eventDistributeCompleted = "distribute_completed"
)
