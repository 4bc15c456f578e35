//go:build !integration

package payment_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/jabinweb/sciocare-sub001/internal/domain"
	"github.com/jabinweb/sciocare-sub001/internal/infra/payment"
)

func sign(secret string, data string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

func TestRazorpayGateway_VerifyCheckout(t *testing.T) {
	const secret = "test_key_secret"
	g := payment.NewRazorpayGateway(secret, "")

	t.Run("should accept a correctly signed proof", func(t *testing.T) {
		sig := sign(secret, "order_abc|pay_xyz")
		if err := g.VerifyCheckout("order_abc", "pay_xyz", sig); err != nil {
			t.Fatalf("expected valid signature to pass, got %v", err)
		}
	})

	t.Run("should reject a tampered signature", func(t *testing.T) {
		sig := sign(secret, "order_abc|pay_xyz")
		corrupted := sig[:len(sig)-1] + "0"
		if corrupted == sig {
			corrupted = sig[:len(sig)-1] + "1"
		}
		err := g.VerifyCheckout("order_abc", "pay_xyz", corrupted)
		if !errors.Is(err, domain.ErrInvalidSignature) {
			t.Fatalf("expected ErrInvalidSignature, got %v", err)
		}
		if !domain.IsNonRetriable(err) {
			t.Error("signature mismatch must be classified non-retriable")
		}
	})

	t.Run("should reject a proof signed for a different payment", func(t *testing.T) {
		sig := sign(secret, "order_abc|pay_other")
		if err := g.VerifyCheckout("order_abc", "pay_xyz", sig); !errors.Is(err, domain.ErrInvalidSignature) {
			t.Fatalf("expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("should reject missing parameters", func(t *testing.T) {
		if err := g.VerifyCheckout("", "pay_xyz", "sig"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("should fail when no secret is configured", func(t *testing.T) {
		unconfigured := payment.NewRazorpayGateway("", "")
		if err := unconfigured.VerifyCheckout("o", "p", "s"); !errors.Is(err, domain.ErrGatewayNotConfigured) {
			t.Fatalf("expected ErrGatewayNotConfigured, got %v", err)
		}
	})
}

func TestRazorpayGateway_VerifyWebhook(t *testing.T) {
	const secret = "whsec_123"
	g := payment.NewRazorpayGateway("unused", secret)
	body := []byte(`{"event":"payment.captured","payload":{}}`)

	t.Run("should accept a body signed with the webhook secret", func(t *testing.T) {
		if err := g.VerifyWebhook(body, sign(secret, string(body))); err != nil {
			t.Fatalf("expected valid webhook signature, got %v", err)
		}
	})

	t.Run("should reject a signature computed with the checkout secret", func(t *testing.T) {
		err := g.VerifyWebhook(body, sign("unused", string(body)))
		if !errors.Is(err, domain.ErrInvalidSignature) {
			t.Fatalf("expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("should reject a modified body", func(t *testing.T) {
		sig := sign(secret, string(body))
		tampered := append([]byte{}, body...)
		tampered[10] ^= 0xff
		if err := g.VerifyWebhook(tampered, sig); !errors.Is(err, domain.ErrInvalidSignature) {
			t.Fatalf("expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("should fail when the webhook secret is missing", func(t *testing.T) {
		unconfigured := payment.NewRazorpayGateway("k", "")
		if err := unconfigured.VerifyWebhook(body, "sig"); !errors.Is(err, domain.ErrGatewayNotConfigured) {
			t.Fatalf("expected ErrGatewayNotConfigured, got %v", err)
		}
	})
}
