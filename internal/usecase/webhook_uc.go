package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jabinweb/sciocare-sub001/internal/domain"
	"github.com/jabinweb/sciocare-sub001/internal/domain/model"
	"github.com/jabinweb/sciocare-sub001/internal/domain/ports/adapter"
	"github.com/jabinweb/sciocare-sub001/internal/domain/ports/repository"
)

// Compile-time check
var _ WebhookUseCase = (*webhookUC)(nil)

// WebhookResult reports what a webhook delivery did.
type WebhookResult struct {
	Event   string
	Handled bool
	Verify  *VerifyResult
}

type WebhookUseCase interface {
	// HandleRazorpay authenticates the raw delivery against the webhook secret
	// and applies the event. Unknown events are acknowledged without action so
	// the gateway stops redelivering them.
	HandleRazorpay(ctx context.Context, body []byte, signature string) (*WebhookResult, error)
}

type webhookUC struct {
	payments    repository.PaymentRepository
	provisioner ProvisionUseCase
	notifier    NotificationUseCase
	razorpay    adapter.RazorpayVerifier
	locker      Locker
	log         *zerolog.Logger
}

func NewWebhookUseCase(
	payments repository.PaymentRepository,
	provisioner ProvisionUseCase,
	notifier NotificationUseCase,
	razorpay adapter.RazorpayVerifier,
	locker Locker,
	logger *zerolog.Logger,
) *webhookUC {
	l := logger.With().Str("component", "WebhookUC").Logger()
	return &webhookUC{
		payments:    payments,
		provisioner: provisioner,
		notifier:    notifier,
		razorpay:    razorpay,
		locker:      locker,
		log:         &l,
	}
}

// razorpayEvent mirrors the fields of the delivery envelope this service uses.
type razorpayEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID               string `json:"id"`
				OrderID          string `json:"order_id"`
				ErrorDescription string `json:"error_description"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

func (u *webhookUC) HandleRazorpay(ctx context.Context, body []byte, signature string) (*WebhookResult, error) {
	if err := u.razorpay.VerifyWebhook(body, signature); err != nil {
		return nil, err
	}

	var ev razorpayEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("%w: malformed webhook payload: %v", domain.ErrInvalidArgument, err)
	}

	switch ev.Event {
	case "payment.captured":
		return u.handleCaptured(ctx, &ev)
	case "payment.failed":
		return u.handleFailed(ctx, &ev)
	default:
		u.log.Debug().Str("event", ev.Event).Msg("ignoring webhook event")
		return &WebhookResult{Event: ev.Event, Handled: false}, nil
	}
}

func (u *webhookUC) handleCaptured(ctx context.Context, ev *razorpayEvent) (*WebhookResult, error) {
	orderID := ev.Payload.Payment.Entity.OrderID
	if orderID == "" {
		return nil, fmt.Errorf("%w: captured event without order_id", domain.ErrInvalidArgument)
	}

	token, err := u.locker.TryLock(ctx, "payment:verify:"+orderID, 30*time.Second)
	if err != nil {
		// The client verify path holds the lock; it will finish the job.
		// Non-2xx makes the gateway redeliver, which is the safety net.
		return nil, domain.ErrLockNotAcquired
	}
	defer func() { _ = u.locker.Unlock(ctx, "payment:verify:"+orderID, token) }()

	p, err := u.payments.FindByGatewayOrderID(ctx, nil, model.GatewayRazorpay, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// No row yet. Non-2xx so the gateway redelivers after the
			// checkout flow has written the payment record.
			u.log.Warn().Str("order_id", orderID).Msg("captured event for unknown payment")
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}

	if p.Status != model.PaymentStatusCompleted {
		pid := ev.Payload.Payment.Entity.ID
		var gatewayPaymentID *string
		if pid != "" {
			gatewayPaymentID = &pid
		}
		if _, err := u.payments.UpdateStatusIfPending(ctx, nil, p.ID, model.PaymentStatusCompleted, gatewayPaymentID, nil); err != nil {
			return nil, err
		}
		if p, err = u.payments.FindByID(ctx, nil, p.ID); err != nil {
			return nil, err
		}
		if p.Status != model.PaymentStatusCompleted {
			// Terminal in another state (refunded, cancelled); do not provision.
			u.log.Warn().Str("payment_id", p.ID).Str("status", string(p.Status)).Msg("captured event for terminal payment")
			return &WebhookResult{Event: ev.Event, Handled: false}, nil
		}
	}

	result := &VerifyResult{Payment: p}
	provisionInto(ctx, u.log, u.provisioner, u.notifier, result, false)
	return &WebhookResult{Event: ev.Event, Handled: true, Verify: result}, nil
}

// handleFailed records the terminal failure. This is the only path that moves
// a payment to FAILED; server-side reconciliation never does.
func (u *webhookUC) handleFailed(ctx context.Context, ev *razorpayEvent) (*WebhookResult, error) {
	orderID := ev.Payload.Payment.Entity.OrderID
	if orderID == "" {
		return nil, fmt.Errorf("%w: failed event without order_id", domain.ErrInvalidArgument)
	}

	p, err := u.payments.FindByGatewayOrderID(ctx, nil, model.GatewayRazorpay, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &WebhookResult{Event: ev.Event, Handled: false}, nil
		}
		return nil, err
	}

	reason := ev.Payload.Payment.Entity.ErrorDescription
	if reason == "" {
		reason = "payment failed at gateway"
	}
	updated, err := u.payments.UpdateStatusIfPending(ctx, nil, p.ID, model.PaymentStatusFailed, nil, &reason)
	if err != nil {
		return nil, err
	}
	if !updated {
		// Already settled (e.g. captured won the race); keep the success.
		u.log.Info().Str("payment_id", p.ID).Msg("ignoring failed event for settled payment")
	}
	return &WebhookResult{Event: ev.Event, Handled: updated}, nil
}
