// File: internal/infra/security/billing_key_cipher.go
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
)

// BillingKeyCipher protects gateway billing keys at rest. Values are sealed
// with AES-GCM and a fresh nonce per key, so the same plaintext never yields
// the same ciphertext. Because of that, lookups by billing key go through
// Digest, a keyed deterministic hash stored next to the ciphertext.
type BillingKeyCipher struct {
	gcm cipher.AEAD
	mac []byte
}

// NewBillingKeyCipher requires a 16, 24, or 32 byte key (AES-128/192/256).
func NewBillingKeyCipher(key string) (*BillingKeyCipher, error) {
	k := []byte(key)
	n := len(k)
	if n != 16 && n != 24 && n != 32 {
		return nil, fmt.Errorf("billing key cipher key must be 16, 24, or 32 bytes; got %d", n)
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &BillingKeyCipher{gcm: gcm, mac: k}, nil
}

// Encrypt returns base64(nonce || ciphertext).
func (c *BillingKeyCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	ct := c.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ct), nil
}

// Decrypt accepts the output of Encrypt and returns the original billing key.
func (c *BillingKeyCipher) Decrypt(b64 string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	ns := c.gcm.NonceSize()
	if len(data) < ns {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, ct := data[:ns], data[ns:]
	pt, err := c.gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("gcm open: %w", err)
	}
	return string(pt), nil
}

// Digest returns a deterministic keyed hash of the billing key, suitable for
// an indexed equality column.
func (c *BillingKeyCipher) Digest(plaintext string) string {
	h := hmac.New(sha256.New, c.mac)
	h.Write([]byte(plaintext))
	return hex.EncodeToString(h.Sum(nil))
}
