package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureVerifier validates gateway-issued HMAC-SHA256 signatures.
// The client verification path signs "orderID|paymentID" with the primary
// key secret; the webhook path signs the raw request body with the webhook
// secret, falling back to the primary secret when no webhook secret is
// configured.
type SignatureVerifier struct {
	keySecret     []byte
	webhookSecret []byte
}

func NewSignatureVerifier(keySecret, webhookSecret string) *SignatureVerifier {
	v := &SignatureVerifier{keySecret: []byte(keySecret)}
	if webhookSecret != "" {
		v.webhookSecret = []byte(webhookSecret)
	} else {
		v.webhookSecret = v.keySecret
	}
	return v
}

// VerifyPayment checks the signature the gateway handed to the client after
// checkout.
func (v *SignatureVerifier) VerifyPayment(orderID, paymentID, signature string) bool {
	payload := orderID + "|" + paymentID
	return verifyHMAC(v.keySecret, []byte(payload), signature)
}

// VerifyWebhook checks the signature header against the exact raw body bytes.
func (v *SignatureVerifier) VerifyWebhook(body []byte, signature string) bool {
	return verifyHMAC(v.webhookSecret, body, signature)
}

// verifyHMAC recomputes the hex digest and compares in constant time.
// Malformed input is simply not valid; this never errors.
func verifyHMAC(secret, payload []byte, signature string) bool {
	if len(secret) == 0 || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
