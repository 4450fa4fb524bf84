/*
Package secret provides the encryption and masking capability for
sensitive values (account numbers, API credentials).

PURPOSE:
  A Cipher is constructed ONCE from the configured passphrase and passed
  explicitly to whatever needs it. Key derivation (PBKDF2-HMAC-SHA256,
  100k iterations) happens in NewCipher; there is no process-global
  cached state.

FORMAT:
  Ciphertext is AES-256-GCM with a random nonce, base64url encoded as
  nonce||sealed. Each Encrypt call draws a fresh nonce, so equal
  plaintexts never produce equal ciphertexts.

SEE ALSO:
  - mask.go: Display masking for account numbers and emails
*/
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	kdfIterations = 100000
	keyLength     = 32
)

// kdfSalt is fixed so that the same passphrase always derives the same
// key across restarts. The passphrase itself is the secret.
var kdfSalt = []byte("taxdesk-account-store")

var ErrMalformedCiphertext = errors.New("malformed ciphertext")

// Cipher encrypts and decrypts string values. Safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives the AES key from the passphrase and builds the AEAD.
// An empty passphrase is accepted for development setups; production
// wiring validates presence in config.
func NewCipher(passphrase string) (*Cipher, error) {
	if passphrase == "" {
		passphrase = "development-key-do-not-use-in-production"
	}

	key := pbkdf2.Key([]byte(passphrase), kdfSalt, kdfIterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("building cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("building gcm: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals the value and returns the encoded ciphertext.
func (c *Cipher) Encrypt(value string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("drawing nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(value), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens an encoded ciphertext produced by Encrypt.
func (c *Cipher) Decrypt(encoded string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	if len(raw) < c.aead.NonceSize() {
		return "", ErrMalformedCiphertext
	}

	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	return string(plain), nil
}
