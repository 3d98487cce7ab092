//go:build !integration

package security

import (
	"strings"
	"testing"
)

const testKey = "0123456789abcdef0123456789abcdef" // 32 bytes

func TestBillingKeyCipher(t *testing.T) {
	c, err := NewBillingKeyCipher(testKey)
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}

	t.Run("round trip", func(t *testing.T) {
		ct, err := c.Encrypt("bkey_live_abc123")
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		if strings.Contains(ct, "bkey_live") {
			t.Error("ciphertext must not contain the plaintext")
		}
		pt, err := c.Decrypt(ct)
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if pt != "bkey_live_abc123" {
			t.Errorf("round trip mismatch: %q", pt)
		}
	})

	t.Run("fresh nonce per encryption", func(t *testing.T) {
		a, _ := c.Encrypt("same-key")
		b, _ := c.Encrypt("same-key")
		if a == b {
			t.Error("two encryptions of the same plaintext must differ")
		}
	})

	t.Run("tampered ciphertext fails to open", func(t *testing.T) {
		ct, _ := c.Encrypt("bkey_x")
		raw := []byte(ct)
		raw[len(raw)-5] ^= 0x01
		if _, err := c.Decrypt(string(raw)); err == nil {
			t.Error("tampered ciphertext must not decrypt")
		}
	})

	t.Run("garbage input", func(t *testing.T) {
		if _, err := c.Decrypt("not base64!!"); err == nil {
			t.Error("invalid base64 must error")
		}
		if _, err := c.Decrypt("c2hvcnQ="); err == nil {
			t.Error("a too-short ciphertext must error")
		}
	})

	t.Run("digest is deterministic and keyed", func(t *testing.T) {
		if c.Digest("bkey_a") != c.Digest("bkey_a") {
			t.Error("digest must be deterministic")
		}
		if c.Digest("bkey_a") == c.Digest("bkey_b") {
			t.Error("digests of different keys must differ")
		}
		other, _ := NewBillingKeyCipher("fedcba9876543210fedcba9876543210")
		if c.Digest("bkey_a") == other.Digest("bkey_a") {
			t.Error("digest must depend on the cipher key")
		}
		if len(c.Digest("bkey_a")) != 64 {
			t.Error("digest must be hex-encoded sha256")
		}
	})
}

func TestNewBillingKeyCipherKeyLength(t *testing.T) {
	for _, n := range []int{16, 24, 32} {
		if _, err := NewBillingKeyCipher(strings.Repeat("k", n)); err != nil {
			t.Errorf("key length %d must be accepted: %v", n, err)
		}
	}
	for _, n := range []int{0, 8, 15, 33} {
		if _, err := NewBillingKeyCipher(strings.Repeat("k", n)); err == nil {
			t.Errorf("key length %d must be rejected", n)
		}
	}
}
