package vault_test

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/agentvault/agent-vault/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSecret(t *testing.T) []byte {
	t.Helper()
	secret := make([]byte, 32)
	_, err := rand.Read(secret)
	require.NoError(t, err)
	return secret
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	// Low iteration count keeps the test fast; the KDF parameters are
	// recorded in the store and honored on decrypt either way.
	v := vault.New(1024)
	secret := newSecret(t)
	pub := []byte("test-public-key")

	store, err := v.Encrypt(pub, secret, "correct horse battery staple")
	require.NoError(t, err)

	assert.Equal(t, vault.AlgorithmID, store.AlgorithmID)
	assert.Equal(t, 1024, store.KDFIterations)
	assert.Len(t, store.Salt, 16)
	assert.NotEmpty(t, store.Nonce)
	assert.NotEqual(t, secret, store.Ciphertext)

	got, err := v.Decrypt(store, "correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, secret, got)
}

func TestDecryptWrongPassword(t *testing.T) {
	v := vault.New(1024)
	store, err := v.Encrypt(nil, newSecret(t), "password-one")
	require.NoError(t, err)

	got, err := v.Decrypt(store, "password-two")
	require.ErrorIs(t, err, vault.ErrAuthenticationFailure)
	assert.Nil(t, got)
}

func TestDecryptTamperDetection(t *testing.T) {
	v := vault.New(1024)
	secret := newSecret(t)
	store, err := v.Encrypt(nil, secret, "a strong enough password")
	require.NoError(t, err)

	// Flipping any single bit of ciphertext (which includes the auth
	// tag) or the nonce must fail closed.
	for name, field := range map[string][]byte{
		"ciphertext": store.Ciphertext,
		"nonce":      store.Nonce,
	} {
		for i := range field {
			field[i] ^= 0x01
			got, err := v.Decrypt(store, "a strong enough password")
			assert.ErrorIs(t, err, vault.ErrAuthenticationFailure, "field %s byte %d", name, i)
			assert.Nil(t, got)
			field[i] ^= 0x01
		}
	}

	// Sanity: untampered store still decrypts.
	got, err := v.Decrypt(store, "a strong enough password")
	require.NoError(t, err)
	assert.True(t, bytes.Equal(secret, got))
}

func TestFreshSaltAndNoncePerRecord(t *testing.T) {
	v := vault.New(1024)
	secret := newSecret(t)

	a, err := v.Encrypt(nil, secret, "pw")
	require.NoError(t, err)
	b, err := v.Encrypt(nil, secret, "pw")
	require.NoError(t, err)

	assert.NotEqual(t, a.Salt, b.Salt)
	assert.NotEqual(t, a.Nonce, b.Nonce)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestEmptyPasswordAccepted(t *testing.T) {
	// Weak and empty passwords are accepted and logged, not rejected.
	v := vault.New(1024)
	secret := newSecret(t)

	store, err := v.Encrypt(nil, secret, "")
	require.NoError(t, err)

	got, err := v.Decrypt(store, "")
	require.NoError(t, err)
	assert.Equal(t, secret, got)
}

func TestDecryptRejectsForeignAlgorithm(t *testing.T) {
	v := vault.New(1024)
	store, err := v.Encrypt(nil, newSecret(t), "pw")
	require.NoError(t, err)

	store.AlgorithmID = "scrypt/xchacha20"
	_, err = v.Decrypt(store, "pw")
	require.Error(t, err)
	assert.NotErrorIs(t, err, vault.ErrAuthenticationFailure)
}
