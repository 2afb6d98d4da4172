package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sign returns the lowercase hex HMAC-SHA256 of payload.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPaymentSignature checks the checkout signature over "orderID|paymentID".
func VerifyPaymentSignature(secret, orderID, paymentID, signature string) bool {
	return verify(secret, []byte(orderID+"|"+paymentID), signature)
}

// VerifyWebhookSignature checks X-Razorpay-Signature over the raw body.
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	return verify(secret, body, signature)
}

func verify(secret string, payload []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), got)
}
