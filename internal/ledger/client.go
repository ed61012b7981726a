package ledger

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcutil/base58"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Client is a thin JSON-RPC client for the ledger collaborator:
// balance queries, signed-payload broadcast, and confirmation polling.
type Client struct {
	endpoint   string
	httpClient *http.Client
	nextID     uint64

	pollInterval time.Duration
}

// New creates a ledger client against endpoint.
func New(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint:     endpoint,
		httpClient:   &http.Client{Timeout: timeout},
		pollInterval: 500 * time.Millisecond,
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      atomic.AddUint64(&c.nextID, 1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return errors.Wrap(err, "failed to encode rpc request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build rpc request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "rpc %s failed", method)
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return errors.Wrapf(err, "failed to decode rpc %s response", method)
	}
	if rpcResp.Error != nil {
		return errors.Errorf("rpc %s returned error %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return errors.Wrapf(err, "failed to decode rpc %s result", method)
		}
	}
	return nil
}

// GetBalance returns the account balance, in the ledger's smallest
// unit, for the given public key.
func (c *Client) GetBalance(ctx context.Context, publicKey ed25519.PublicKey) (uint64, error) {
	var result struct {
		Value uint64 `json:"value"`
	}
	if err := c.call(ctx, "getBalance", []interface{}{base58.Encode(publicKey)}, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

// BroadcastSignedPayload submits a fully signed payload and returns
// the ledger's identifier for it.
func (c *Client) BroadcastSignedPayload(ctx context.Context, payload []byte) (string, error) {
	var id string
	if err := c.call(ctx, "sendTransaction", []interface{}{base58.Encode(payload)}, &id); err != nil {
		return "", err
	}

	log.Info().Str("tx", id).Msg("Signed payload broadcast to ledger")
	return id, nil
}

// AwaitConfirmation polls the ledger until the identified submission
// confirms, fails, or the timeout expires.
func (c *Client) AwaitConfirmation(ctx context.Context, id string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		var result struct {
			Status string `json:"status"`
		}
		err := c.call(ctx, "getSignatureStatus", []interface{}{id}, &result)
		if err == nil {
			switch result.Status {
			case "confirmed", "finalized":
				return nil
			case "failed":
				return errors.Errorf("ledger rejected submission %s", id)
			}
		} else {
			log.Warn().Err(err).Str("tx", id).Msg("Confirmation poll failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}

	return errors.Errorf("submission %s not confirmed within %s", id, timeout)
}
