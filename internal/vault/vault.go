package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// AlgorithmID identifies the KDF/cipher combination recorded in
	// every EncryptedKeyStore this package produces.
	AlgorithmID = "pbkdf2-sha256/aes-256-gcm"

	// DefaultKDFIterations is the PBKDF2 iteration count used when the
	// caller does not configure one.
	DefaultKDFIterations = 100_000

	saltSize = 16
	keySize  = 32

	weakPasswordLen = 8
)

// ErrAuthenticationFailure is returned when decryption fails its
// authentication check. No partial plaintext is ever returned.
var ErrAuthenticationFailure = errors.New("key store authentication failure")

// EncryptedKeyStore is the at-rest form of a wallet secret. Salt and
// nonce are freshly random per record and never reused.
type EncryptedKeyStore struct {
	PublicKey     []byte    `json:"public_key"`
	Ciphertext    []byte    `json:"ciphertext"`
	Nonce         []byte    `json:"nonce"`
	Salt          []byte    `json:"salt"`
	KDFIterations int       `json:"kdf_iterations"`
	AlgorithmID   string    `json:"algorithm_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// Vault performs symmetric encryption of raw wallet secrets under a
// password-derived key. It holds no secrets itself; callers are
// responsible for zeroing plaintext buffers returned by Decrypt as
// soon as they are done with them.
type Vault struct {
	iterations int
}

// New creates a Vault. iterations <= 0 selects DefaultKDFIterations.
func New(iterations int) *Vault {
	if iterations <= 0 {
		iterations = DefaultKDFIterations
	}
	return &Vault{iterations: iterations}
}

// Encrypt seals secret under password and returns the at-rest record.
// Weak passwords are accepted but logged as a risk.
func (v *Vault) Encrypt(publicKey, secret []byte, password string) (*EncryptedKeyStore, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty secret")
	}
	if len(password) < weakPasswordLen {
		log.Warn().
			Int("password_len", len(password)).
			Msg("Encrypting key store with a weak password")
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, "failed to generate salt")
	}

	aead, err := newAEAD(password, salt, v.iterations)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "failed to generate nonce")
	}

	return &EncryptedKeyStore{
		PublicKey:     append([]byte(nil), publicKey...),
		Ciphertext:    aead.Seal(nil, nonce, secret, publicKey),
		Nonce:         nonce,
		Salt:          salt,
		KDFIterations: v.iterations,
		AlgorithmID:   AlgorithmID,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// Decrypt opens store with password. Any tampering with ciphertext,
// nonce, or tag surfaces as ErrAuthenticationFailure.
func (v *Vault) Decrypt(store *EncryptedKeyStore, password string) ([]byte, error) {
	if store == nil {
		return nil, errors.New("nil key store")
	}
	if store.AlgorithmID != AlgorithmID {
		return nil, errors.Errorf("unsupported key store algorithm %q", store.AlgorithmID)
	}

	iterations := store.KDFIterations
	if iterations <= 0 {
		iterations = v.iterations
	}

	aead, err := newAEAD(password, store.Salt, iterations)
	if err != nil {
		return nil, err
	}
	if len(store.Nonce) != aead.NonceSize() {
		return nil, ErrAuthenticationFailure
	}

	secret, err := aead.Open(nil, store.Nonce, store.Ciphertext, store.PublicKey)
	if err != nil {
		return nil, ErrAuthenticationFailure
	}

	return secret, nil
}

// newAEAD derives the symmetric key and builds the AES-256-GCM cipher.
// The PBKDF2 step is CPU-bound; callers on a latency-sensitive path
// should run Decrypt off their hot loop.
func newAEAD(password string, salt []byte, iterations int) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, iterations, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to init cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "failed to init GCM")
	}
	return aead, nil
}
