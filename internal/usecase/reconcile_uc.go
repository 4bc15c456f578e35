package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jabinweb/sciocare-sub001/internal/domain"
	"github.com/jabinweb/sciocare-sub001/internal/domain/model"
	"github.com/jabinweb/sciocare-sub001/internal/domain/ports/adapter"
	"github.com/jabinweb/sciocare-sub001/internal/domain/ports/repository"
	"github.com/jabinweb/sciocare-sub001/internal/resilience"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// VerifyRequest carries the gateway-specific proof a client submits after
// checkout. Exactly one gateway's fields must be populated.
type VerifyRequest struct {
	RazorpayOrderID   string
	RazorpayPaymentID string
	RazorpaySignature string

	CashfreeOrderID string

	// ForceReprocess rebuilds entitlements in place (manual path only).
	ForceReprocess bool
}

// VerifyResult separates verification from provisioning so callers can
// report "paid but not provisioned" (HTTP 207) without losing either fact.
type VerifyResult struct {
	Payment       *model.Payment
	Subscriptions []*model.Subscription
	ProvisionErr  error
}

type ReconcileUseCase interface {
	// VerifyAndProvision validates the proof, marks the payment COMPLETED and
	// provisions entitlements. The returned error covers verification only;
	// provisioning failure travels in VerifyResult.ProvisionErr.
	VerifyAndProvision(ctx context.Context, req VerifyRequest) (*VerifyResult, error)
	// Reprocess re-runs provisioning for an already-COMPLETED payment,
	// identified by payment id or gateway order id.
	Reprocess(ctx context.Context, paymentID, orderID string, force bool) (*VerifyResult, error)
	// ConfirmPending tries to finalize a stale PENDING payment (background sweep).
	ConfirmPending(ctx context.Context, p *model.Payment) error
}

// Locker guards a payment against the verify/webhook double-submit race.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	Unlock(ctx context.Context, key, token string) error
}

type reconcileUC struct {
	payments    repository.PaymentRepository
	provisioner ProvisionUseCase
	notifier    NotificationUseCase
	razorpay    adapter.RazorpayVerifier
	cashfree    adapter.CashfreeClient
	cfBreaker   *resilience.Breaker
	retry       resilience.RetryOptions
	locker      Locker
	log         *zerolog.Logger
}

func NewReconcileUseCase(
	payments repository.PaymentRepository,
	provisioner ProvisionUseCase,
	notifier NotificationUseCase,
	razorpay adapter.RazorpayVerifier,
	cashfree adapter.CashfreeClient,
	cfBreaker *resilience.Breaker,
	retry resilience.RetryOptions,
	locker Locker,
	logger *zerolog.Logger,
) *reconcileUC {
	l := logger.With().Str("component", "ReconcileUC").Logger()
	return &reconcileUC{
		payments:    payments,
		provisioner: provisioner,
		notifier:    notifier,
		razorpay:    razorpay,
		cashfree:    cashfree,
		cfBreaker:   cfBreaker,
		retry:       retry,
		locker:      locker,
		log:         &l,
	}
}

func (u *reconcileUC) VerifyAndProvision(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	var orderID string
	switch {
	case req.RazorpayOrderID != "":
		orderID = req.RazorpayOrderID
	case req.CashfreeOrderID != "":
		orderID = req.CashfreeOrderID
	default:
		return nil, fmt.Errorf("%w: no gateway proof supplied", domain.ErrInvalidArgument)
	}

	// One writer per payment across the client verify and webhook paths.
	token, err := u.locker.TryLock(ctx, "payment:verify:"+orderID, 30*time.Second)
	if err != nil {
		return nil, domain.ErrLockNotAcquired
	}
	defer func() { _ = u.locker.Unlock(ctx, "payment:verify:"+orderID, token) }()

	var p *model.Payment
	if req.RazorpayOrderID != "" {
		p, err = u.verifyRazorpay(ctx, req)
	} else {
		p, err = u.verifyCashfree(ctx, req.CashfreeOrderID)
	}
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{Payment: p}
	provisionInto(ctx, u.log, u.provisioner, u.notifier, result, req.ForceReprocess)
	return result, nil
}

func (u *reconcileUC) Reprocess(ctx context.Context, paymentID, orderID string, force bool) (*VerifyResult, error) {
	var p *model.Payment
	var err error
	switch {
	case paymentID != "":
		p, err = u.payments.FindByID(ctx, nil, paymentID)
	case orderID != "":
		p, err = u.payments.FindByGatewayOrderID(ctx, nil, model.GatewayRazorpay, orderID)
		if errors.Is(err, domain.ErrNotFound) {
			p, err = u.payments.FindByGatewayOrderID(ctx, nil, model.GatewayCashfree, orderID)
		}
	default:
		return nil, fmt.Errorf("%w: paymentId or orderId is required", domain.ErrInvalidArgument)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	if p.Status != model.PaymentStatusCompleted {
		return nil, fmt.Errorf("%w: payment is %s, reprocess requires COMPLETED", domain.ErrPaymentNotCompleted, p.Status)
	}

	result := &VerifyResult{Payment: p}
	provisionInto(ctx, u.log, u.provisioner, u.notifier, result, force)
	return result, nil
}

func (u *reconcileUC) ConfirmPending(ctx context.Context, p *model.Payment) error {
	// Only Cashfree payments can be confirmed server-side; Razorpay needs the
	// client's signed proof or the webhook.
	if p.Gateway != model.GatewayCashfree || p.CashfreeOrderID == "" {
		return nil
	}
	_, err := u.VerifyAndProvision(ctx, VerifyRequest{CashfreeOrderID: p.CashfreeOrderID})
	return err
}

// verifyRazorpay checks the client-signed proof and promotes the payment.
// The whole step runs under the retry executor so transient database faults
// are retried while signature failures abort on the first attempt.
func (u *reconcileUC) verifyRazorpay(ctx context.Context, req VerifyRequest) (*model.Payment, error) {
	p, err := u.findPayment(ctx, model.GatewayRazorpay, req.RazorpayOrderID)
	if err != nil {
		return nil, err
	}
	if p.Status == model.PaymentStatusCompleted {
		return p, nil
	}

	return resilience.Do(ctx, u.log, "razorpay.verify", u.retry, func(ctx context.Context) (*model.Payment, error) {
		if err := u.razorpay.VerifyCheckout(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature); err != nil {
			return nil, err
		}
		pid := req.RazorpayPaymentID
		return u.markCompleted(ctx, p.ID, &pid)
	})
}

// verifyCashfree confirms payment state with the gateway. The remote order
// fetch is guarded by the Cashfree circuit breaker inside the retry loop.
func (u *reconcileUC) verifyCashfree(ctx context.Context, orderID string) (*model.Payment, error) {
	p, err := u.findPayment(ctx, model.GatewayCashfree, orderID)
	if err != nil {
		return nil, err
	}
	if p.Status == model.PaymentStatusCompleted {
		return p, nil
	}

	order, err := resilience.Do(ctx, u.log, "cashfree.fetch_order", u.retry, func(ctx context.Context) (*adapter.CashfreeOrder, error) {
		return resilience.Guard(ctx, u.cfBreaker, func(ctx context.Context) (*adapter.CashfreeOrder, error) {
			return u.cashfree.FetchOrder(ctx, orderID)
		})
	})
	if err != nil {
		return nil, err
	}
	if order.Status != "PAID" {
		// Not a failure transition: the order may still complete. The webhook
		// or a later sweep settles it.
		return nil, fmt.Errorf("%w: cashfree order status %s", domain.ErrPaymentNotCompleted, order.Status)
	}
	return u.markCompleted(ctx, p.ID, nil)
}

func (u *reconcileUC) findPayment(ctx context.Context, gw model.Gateway, orderID string) (*model.Payment, error) {
	p, err := u.payments.FindByGatewayOrderID(ctx, nil, gw, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	return p, nil
}

// markCompleted performs the conditional PENDING -> COMPLETED transition and
// re-reads the row. Losing the race to the webhook is success as long as the
// winner also landed on COMPLETED.
func (u *reconcileUC) markCompleted(ctx context.Context, paymentID string, gatewayPaymentID *string) (*model.Payment, error) {
	updated, err := u.payments.UpdateStatusIfPending(ctx, nil, paymentID, model.PaymentStatusCompleted, gatewayPaymentID, nil)
	if err != nil {
		return nil, err
	}
	fresh, err := u.payments.FindByID(ctx, nil, paymentID)
	if err != nil {
		return nil, err
	}
	if !updated && fresh.Status != model.PaymentStatusCompleted {
		return nil, fmt.Errorf("%w: payment already %s", domain.ErrPaymentNotCompleted, fresh.Status)
	}
	return fresh, nil
}

// provisionInto runs provisioning and queues notifications; provisioning
// errors are reported in the result, never raised, so a verified payment is
// never mistaken for an unverified one. Shared by the client verify path and
// the webhook path.
func provisionInto(ctx context.Context, log *zerolog.Logger, provisioner ProvisionUseCase, notifier NotificationUseCase, result *VerifyResult, force bool) {
	p := result.Payment
	if len(p.Metadata) == 0 {
		return
	}
	spec, err := model.ParseProvisionSpec(p.Metadata)
	if err != nil {
		log.Error().Err(err).Str("payment_id", p.ID).Msg("bad provisioning metadata")
		result.ProvisionErr = err
		return
	}
	subs, err := provisioner.Provision(ctx, p, spec, force)
	if err != nil {
		log.Error().Err(err).Str("payment_id", p.ID).Msg("subscription provisioning failed")
		result.ProvisionErr = err
		return
	}
	result.Subscriptions = subs
	if notifier != nil {
		notifier.PaymentSucceeded(ctx, p, subs, spec)
	}
}
