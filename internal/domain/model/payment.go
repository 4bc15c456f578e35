package model

import "time"

type Gateway string

const (
	GatewayRazorpay Gateway = "RAZORPAY"
	GatewayCashfree Gateway = "CASHFREE"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"   // checkout order created; awaiting verification
	PaymentStatusCompleted PaymentStatus = "COMPLETED" // verified at the gateway
	PaymentStatusFailed    PaymentStatus = "FAILED"    // gateway reported failure or verification failed
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// Payment records one checkout attempt against a gateway.
// Exactly one row exists per attempt; the reconciler and the webhook handler
// only ever move it forward from PENDING, never delete it.
type Payment struct {
	ID       string  // UUID
	UserID   string  // UUID of the purchasing user
	Gateway  Gateway // RAZORPAY | CASHFREE
	Amount   int64   // minor units (paise), integer to avoid float errors
	Currency string  // e.g. "INR"
	Status   PaymentStatus

	// Gateway-specific correlation ids. Order ids are set at checkout;
	// RazorpayPaymentID is attached once the payment is verified.
	RazorpayOrderID   string
	RazorpayPaymentID string
	CashfreeOrderID   string

	FailureReason *string
	// Metadata describes what to provision once the payment completes
	// (stored as JSONB; see ProvisionSpec for the expected shape).
	Metadata map[string]interface{}

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal reports whether the payment has reached a final state.
func (p *Payment) Terminal() bool {
	switch p.Status {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded, PaymentStatusCancelled:
		return true
	}
	return false
}
