package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyPayment(t *testing.T) {
	v := NewSignatureVerifier("key-secret", "")

	valid := sign("key-secret", []byte("order_abc|pay_xyz"))
	assert.True(t, v.VerifyPayment("order_abc", "pay_xyz", valid))
	assert.False(t, v.VerifyPayment("order_abc", "pay_other", valid))
	assert.False(t, v.VerifyPayment("order_abc", "pay_xyz", "deadbeef"))
	assert.False(t, v.VerifyPayment("order_abc", "pay_xyz", ""))
}

func TestVerifyPayment_MalformedSignatureIsJustInvalid(t *testing.T) {
	v := NewSignatureVerifier("key-secret", "")
	assert.False(t, v.VerifyPayment("order_abc", "pay_xyz", "not-even-hex!!"))
}

func TestVerifyWebhook_UsesWebhookSecret(t *testing.T) {
	v := NewSignatureVerifier("key-secret", "webhook-secret")
	body := []byte(`{"event":"payment.captured"}`)

	assert.True(t, v.VerifyWebhook(body, sign("webhook-secret", body)))
	assert.False(t, v.VerifyWebhook(body, sign("key-secret", body)))
}

func TestVerifyWebhook_FallsBackToKeySecret(t *testing.T) {
	v := NewSignatureVerifier("key-secret", "")
	body := []byte(`{"event":"payment.captured"}`)

	assert.True(t, v.VerifyWebhook(body, sign("key-secret", body)))
}

func TestVerifyWebhook_BodyMutationInvalidates(t *testing.T) {
	v := NewSignatureVerifier("key-secret", "webhook-secret")
	body := []byte(`{"event":"payment.captured"}`)
	signature := sign("webhook-secret", body)

	tampered := []byte(`{"event":"payment.captured" }`)
	assert.False(t, v.VerifyWebhook(tampered, signature))
}
