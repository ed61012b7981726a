package wallets_test

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentvault/agent-vault/internal/api"
	"github.com/agentvault/agent-vault/internal/test"
	"github.com/agentvault/agent-vault/internal/types"
	"github.com/btcsuite/btcutil/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doJSON(t *testing.T, s *api.Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func createWallet(t *testing.T, s *api.Server, agentID string) types.WalletResponse {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/api/v1/wallets", map[string]string{"agent_id": agentID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp types.WalletResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestPostCreateWallet(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		resp := createWallet(t, s, "agent-1")
		require.NotNil(t, resp.AgentID)
		assert.Equal(t, "agent-1", *resp.AgentID)
		assert.Equal(t, "local", *resp.Custody)
		assert.NotEmpty(t, *resp.Address)
		assert.Len(t, base58.Decode(*resp.PublicKey), ed25519.PublicKeySize)

		// Idempotent: same wallet comes back.
		again := createWallet(t, s, "agent-1")
		assert.Equal(t, *resp.PublicKey, *again.PublicKey)
	})
}

func TestPostCreateWalletRequiresAgentID(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		rec := doJSON(t, s, http.MethodPost, "/api/v1/wallets", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetWalletNotFound(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		rec := doJSON(t, s, http.MethodGet, "/api/v1/wallets/ghost", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)

		var pub types.PublicHTTPError
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pub))
		assert.EqualValues(t, http.StatusNotFound, *pub.Code)
	})
}

func TestGetWalletBalance(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		createWallet(t, s, "agent-1")

		rec := doJSON(t, s, http.MethodGet, "/api/v1/wallets/agent-1/balance", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Balance uint64 `json:"balance"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, test.DefaultTestBalance, resp.Balance)
	})
}

func TestPostSignLocal(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		created := createWallet(t, s, "agent-1")

		msg := bytes.Repeat([]byte{0xAB}, 32)
		rec := doJSON(t, s, http.MethodPost, "/api/v1/wallets/agent-1/sign",
			map[string]string{"message_hex": hex.EncodeToString(msg)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp types.SignResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Verified)
		assert.Equal(t, "local", *resp.Custody)

		pub := ed25519.PublicKey(base58.Decode(*created.PublicKey))
		sig := base58.Decode(*resp.SignatureBase58)
		assert.True(t, ed25519.Verify(pub, msg, sig))
	})
}

func TestPostSignRejectsBadDigest(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		createWallet(t, s, "agent-1")

		rec := doJSON(t, s, http.MethodPost, "/api/v1/wallets/agent-1/sign",
			map[string]string{"message_hex": "zzzz"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = doJSON(t, s, http.MethodPost, "/api/v1/wallets/agent-1/sign",
			map[string]string{"message_hex": "abcd"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPostDistributeThenSign(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		createWallet(t, s, "agent-1")

		rec := doJSON(t, s, http.MethodPost, "/api/v1/wallets/agent-1/distribute", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp types.WalletResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "distributed", *resp.Custody)

		// Second distribution conflicts.
		rec = doJSON(t, s, http.MethodPost, "/api/v1/wallets/agent-1/distribute", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)

		// Signing now routes to the simulated cluster: a signature comes
		// back but is never claimed as verified.
		msg := bytes.Repeat([]byte{0x01}, 32)
		rec = doJSON(t, s, http.MethodPost, "/api/v1/wallets/agent-1/sign",
			map[string]string{"message_hex": hex.EncodeToString(msg)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var signResp types.SignResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &signResp))
		assert.False(t, signResp.Verified)
		assert.Equal(t, "distributed", *signResp.Custody)
		assert.Len(t, base58.Decode(*signResp.SignatureBase58), ed25519.SignatureSize)
	})
}

func TestHealthAndReadiness(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		rec := doJSON(t, s, http.MethodGet, "/healthz", nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, s, http.MethodGet, "/readyz", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
