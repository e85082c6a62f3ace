package payments

import (
	"strings"

	"github.com/bizvistar/billing-backend/pkg/razorpay"
)

// Verifier checks the signature the gateway attaches to a subscription
// payment callback.
type Verifier struct {
	secret string
}

// NewVerifier builds a verifier for the active gateway key secret. An empty
// secret yields a verifier that rejects everything.
func NewVerifier(keySecret string) *Verifier {
	return &Verifier{secret: strings.TrimSpace(keySecret)}
}

// Verify reports whether signature is the hex HMAC-SHA256 of
// "paymentID|subscriptionID" under the key secret. It fails closed.
func (v *Verifier) Verify(paymentID, subscriptionID, signature string) bool {
	if v == nil || v.secret == "" {
		return false
	}
	paymentID = strings.TrimSpace(paymentID)
	subscriptionID = strings.TrimSpace(subscriptionID)
	if paymentID == "" || subscriptionID == "" {
		return false
	}
	return razorpay.ValidSignature(v.secret, razorpay.SubscriptionPaymentPayload(paymentID, subscriptionID), signature)
}
