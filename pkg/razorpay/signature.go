package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sign returns the lowercase hex HMAC-SHA256 of payload under secret.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidSignature compares signature to the expected HMAC in constant time.
// An empty secret or signature never validates.
func ValidSignature(secret string, payload []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if secret == "" || signature == "" {
		return false
	}
	expected := Sign(secret, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SubscriptionPaymentPayload is the message signed for a subscription payment callback.
func SubscriptionPaymentPayload(paymentID, subscriptionID string) []byte {
	return []byte(paymentID + "|" + subscriptionID)
}
