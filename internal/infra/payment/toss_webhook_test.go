//go:build !integration

package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"
)

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"eventType":"PAYMENT_STATUS_CHANGED","data":{"orderId":"o1","status":"DONE"}}`)

	t.Run("accepts a valid signature", func(t *testing.T) {
		if !VerifyWebhookSignature(body, sign(body, secret), secret) {
			t.Error("expected a valid signature to verify")
		}
	})

	t.Run("rejects a tampered body", func(t *testing.T) {
		tampered := append([]byte(nil), body...)
		tampered[10] ^= 0x01
		if VerifyWebhookSignature(tampered, sign(body, secret), secret) {
			t.Error("a tampered body must not verify")
		}
	})

	t.Run("rejects a signature under the wrong secret", func(t *testing.T) {
		if VerifyWebhookSignature(body, sign(body, "other-secret"), secret) {
			t.Error("a foreign signature must not verify")
		}
	})

	t.Run("rejects empty signature and empty secret", func(t *testing.T) {
		if VerifyWebhookSignature(body, "", secret) {
			t.Error("an empty signature must not verify")
		}
		if VerifyWebhookSignature(body, sign(body, ""), "") {
			t.Error("verification without a secret must fail closed")
		}
	})
}
