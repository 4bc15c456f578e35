package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jabinweb/sciocare-sub001/internal/domain/model"
	"github.com/jabinweb/sciocare-sub001/internal/domain/ports/adapter"
	"github.com/jabinweb/sciocare-sub001/internal/infra/metrics"
	"github.com/jabinweb/sciocare-sub001/internal/resilience"
)

// Compile-time check
var _ NotificationUseCase = (*notifyUC)(nil)

// NotificationUseCase delivers post-payment emails. Delivery is best-effort:
// failures are logged and counted, never surfaced to the payment flow.
type NotificationUseCase interface {
	PaymentSucceeded(ctx context.Context, payment *model.Payment, subs []*model.Subscription, spec *model.ProvisionSpec)
}

// TaskSubmitter decouples the use case from the worker pool implementation.
type TaskSubmitter interface {
	Submit(fn func(ctx context.Context) error) error
}

type notifyUC struct {
	mailer     adapter.Mailer
	pool       TaskSubmitter
	adminEmail string
	retry      resilience.RetryOptions
	log        *zerolog.Logger
}

// NewNotificationUseCase wires mail delivery through the worker pool. Pass
// resilience.LightRetry as retry in production wiring.
func NewNotificationUseCase(mailer adapter.Mailer, pool TaskSubmitter, adminEmail string, retry resilience.RetryOptions, logger *zerolog.Logger) *notifyUC {
	l := logger.With().Str("component", "NotifyUC").Logger()
	return &notifyUC{
		mailer:     mailer,
		pool:       pool,
		adminEmail: adminEmail,
		retry:      retry,
		log:        &l,
	}
}

func (u *notifyUC) PaymentSucceeded(ctx context.Context, payment *model.Payment, subs []*model.Subscription, spec *model.ProvisionSpec) {
	if u.mailer == nil {
		return
	}
	// Copy what the task needs; the request context ends before it runs.
	userEmail := ""
	if spec != nil {
		userEmail = spec.UserEmail
	}

	err := u.pool.Submit(func(ctx context.Context) error {
		if userEmail != "" {
			u.send(ctx, "welcome", userEmail, welcomeSubject, welcomeBody(subs))
			u.send(ctx, "receipt", userEmail, receiptSubject, receiptBody(payment, subs))
		} else {
			u.log.Warn().Str("payment_id", payment.ID).Msg("no user email in provisioning metadata, skipping user notifications")
		}
		if u.adminEmail != "" {
			u.send(ctx, "admin", u.adminEmail, adminSubject(payment), adminBody(payment, subs))
		}
		return nil
	})
	if err != nil {
		u.log.Error().Err(err).Str("payment_id", payment.ID).Msg("notification task rejected")
		metrics.NotificationSendTotal.WithLabelValues("task", "dropped").Inc()
	}
}

// send retries transient mail failures a couple of times, then gives up.
func (u *notifyUC) send(ctx context.Context, kind, to, subject, body string) {
	_, err := resilience.Do(ctx, u.log, "mail."+kind, u.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, u.mailer.Send(ctx, to, subject, body)
	})
	if err != nil {
		u.log.Error().Err(err).Str("kind", kind).Str("to", to).Msg("notification email failed")
		metrics.NotificationSendTotal.WithLabelValues(kind, "error").Inc()
		return
	}
	metrics.NotificationSendTotal.WithLabelValues(kind, "sent").Inc()
}

const (
	welcomeSubject = "Welcome! Your subscription is active"
	receiptSubject = "Payment receipt"
)

func welcomeBody(subs []*model.Subscription) string {
	var b strings.Builder
	b.WriteString("<h2>Your subscription is active</h2>")
	b.WriteString("<p>You now have access to:</p><ul>")
	for _, s := range subs {
		switch {
		case s.ClassID != nil:
			fmt.Fprintf(&b, "<li>All subjects of class %d</li>", *s.ClassID)
		case s.SubjectID != nil:
			fmt.Fprintf(&b, "<li>Subject %d</li>", *s.SubjectID)
		}
	}
	b.WriteString("</ul>")
	if len(subs) > 0 {
		fmt.Fprintf(&b, "<p>Valid until %s.</p>", subs[0].EndDate.Format("02 Jan 2006"))
	}
	return b.String()
}

func receiptBody(p *model.Payment, subs []*model.Subscription) string {
	var b strings.Builder
	b.WriteString("<h2>Payment receipt</h2>")
	fmt.Fprintf(&b, "<p>Payment ID: %s</p>", p.ID)
	fmt.Fprintf(&b, "<p>Amount: %s %.2f</p>", p.Currency, float64(p.Amount)/100)
	fmt.Fprintf(&b, "<p>Gateway: %s</p>", p.Gateway)
	fmt.Fprintf(&b, "<p>Subscriptions created: %d</p>", len(subs))
	return b.String()
}

func adminSubject(p *model.Payment) string {
	return fmt.Sprintf("Payment received: %s %.2f (%s)", p.Currency, float64(p.Amount)/100, p.Gateway)
}

func adminBody(p *model.Payment, subs []*model.Subscription) string {
	var b strings.Builder
	b.WriteString("<h3>New payment processed</h3>")
	fmt.Fprintf(&b, "<p>Payment %s by user %s at %s.</p>", p.ID, p.UserID, time.Now().Format(time.RFC3339))
	fmt.Fprintf(&b, "<p>%d subscription(s) provisioned.</p>", len(subs))
	return b.String()
}
