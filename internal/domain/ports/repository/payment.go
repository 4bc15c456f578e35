package repository

import (
	"context"
	"time"

	"github.com/jabinweb/sciocare-sub001/internal/domain/model"
)

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	// FindByGatewayOrderID looks a payment up by the order id the given
	// gateway issued at checkout.
	FindByGatewayOrderID(ctx context.Context, tx Tx, gateway model.Gateway, orderID string) (*model.Payment, error)
	// UpdateStatusIfPending moves a PENDING payment to status and attaches the
	// gateway payment id / failure reason when provided. Returns false when the
	// row was already in a terminal state, which is how concurrent verify and
	// webhook deliveries stay idempotent.
	UpdateStatusIfPending(ctx context.Context, tx Tx, id string, status model.PaymentStatus, gatewayPaymentID *string, failureReason *string) (bool, error)
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
}
