package adapter

import "context"

// RazorpayVerifier validates Razorpay-supplied cryptographic proof.
// Checkout verification is a pure HMAC computation; webhook verification
// covers the raw request body with a separate secret.
type RazorpayVerifier interface {
	VerifyCheckout(orderID, paymentID, signature string) error
	VerifyWebhook(body []byte, signature string) error
}

// CashfreeOrder is the slice of the gateway order resource we act on.
type CashfreeOrder struct {
	OrderID  string
	Status   string // PAID | ACTIVE | EXPIRED | TERMINATED ...
	Amount   int64  // minor units
	Currency string
}

// CashfreeClient fetches order state from the Cashfree REST API. Cashfree has
// no client-side signature; verification is an authenticated status lookup.
type CashfreeClient interface {
	FetchOrder(ctx context.Context, orderID string) (*CashfreeOrder, error)
}
