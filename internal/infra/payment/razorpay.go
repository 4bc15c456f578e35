package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/jabinweb/sciocare-sub001/internal/domain"
	"github.com/jabinweb/sciocare-sub001/internal/domain/ports/adapter"
)

var _ adapter.RazorpayVerifier = (*RazorpayGateway)(nil)

// RazorpayGateway verifies Razorpay proof locally. Checkout proof is an
// HMAC-SHA256 over "{orderID}|{paymentID}" with the key secret; webhook proof
// is an HMAC-SHA256 over the raw request body with a separate webhook secret.
type RazorpayGateway struct {
	keySecret     string
	webhookSecret string
}

func NewRazorpayGateway(keySecret, webhookSecret string) *RazorpayGateway {
	return &RazorpayGateway{keySecret: keySecret, webhookSecret: webhookSecret}
}

func (g *RazorpayGateway) VerifyCheckout(orderID, paymentID, signature string) error {
	if g.keySecret == "" {
		return domain.ErrGatewayNotConfigured
	}
	if orderID == "" || paymentID == "" || signature == "" {
		return fmt.Errorf("%w: order id, payment id and signature are required", domain.ErrInvalidArgument)
	}
	expected := hmacHex(g.keySecret, []byte(orderID+"|"+paymentID))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

func (g *RazorpayGateway) VerifyWebhook(body []byte, signature string) error {
	if g.webhookSecret == "" {
		return domain.ErrGatewayNotConfigured
	}
	if signature == "" {
		return fmt.Errorf("%w: missing x-razorpay-signature", domain.ErrInvalidSignature)
	}
	expected := hmacHex(g.webhookSecret, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

func hmacHex(secret string, data []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
