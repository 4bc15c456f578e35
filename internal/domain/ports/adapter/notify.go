package adapter

import "context"

// Mailer sends a single HTML email.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// AlertSender delivers an out-of-band operator alert (e.g. Telegram DM).
type AlertSender interface {
	Alert(ctx context.Context, message string) error
}
