package ledger_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/agentvault/agent-vault/internal/ledger"
	"github.com/btcsuite/btcutil/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcCall struct {
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

func newRPCServer(t *testing.T, handle func(call rpcCall) (interface{}, *string)) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		var call rpcCall
		require.NoError(t, json.NewDecoder(r.Body).Decode(&call))

		result, errMsg := handle(call)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": 1}
		if errMsg != nil {
			resp["error"] = map[string]interface{}{"code": -32000, "message": *errMsg}
		} else {
			resp["result"] = result
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetBalance(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	srv := newRPCServer(t, func(call rpcCall) (interface{}, *string) {
		assert.Equal(t, "getBalance", call.Method)
		require.Len(t, call.Params, 1)
		assert.Equal(t, base58.Encode(pub), call.Params[0])
		return map[string]uint64{"value": 123456}, nil
	})

	c := ledger.New(srv.URL, time.Second)
	balance, err := c.GetBalance(context.Background(), pub)
	require.NoError(t, err)
	assert.Equal(t, uint64(123456), balance)
}

func TestGetBalanceRPCError(t *testing.T) {
	srv := newRPCServer(t, func(call rpcCall) (interface{}, *string) {
		msg := "account not found"
		return nil, &msg
	})

	c := ledger.New(srv.URL, time.Second)
	_, err := c.GetBalance(context.Background(), make(ed25519.PublicKey, ed25519.PublicKeySize))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account not found")
}

func TestBroadcastAndConfirm(t *testing.T) {
	var polls int
	srv := newRPCServer(t, func(call rpcCall) (interface{}, *string) {
		switch call.Method {
		case "sendTransaction":
			return "tx-abc", nil
		case "getSignatureStatus":
			polls++
			if polls < 3 {
				return map[string]string{"status": "pending"}, nil
			}
			return map[string]string{"status": "confirmed"}, nil
		}
		t.Fatalf("unexpected method %s", call.Method)
		return nil, nil
	})

	c := ledger.New(srv.URL, time.Second)
	id, err := c.BroadcastSignedPayload(context.Background(), []byte("signed-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "tx-abc", id)

	require.NoError(t, c.AwaitConfirmation(context.Background(), id, 5*time.Second))
	assert.GreaterOrEqual(t, polls, 3)
}

func TestAwaitConfirmationRejected(t *testing.T) {
	srv := newRPCServer(t, func(call rpcCall) (interface{}, *string) {
		return map[string]string{"status": "failed"}, nil
	})

	c := ledger.New(srv.URL, time.Second)
	err := c.AwaitConfirmation(context.Background(), "tx-bad", 5*time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
}
