package logging

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/jabinweb/sciocare-sub001/internal/domain/model"
	"github.com/jabinweb/sciocare-sub001/internal/domain/ports/adapter"
	"github.com/jabinweb/sciocare-sub001/internal/domain/ports/repository"
)

// ErrorSink persists significant failures to the error_logs table and routes
// CRITICAL entries to the operator alert channel and the admin mailbox.
// Recording is best-effort: a sink failure is logged and dropped, it never
// propagates into the flow that reported the error.
type ErrorSink struct {
	repo       repository.ErrorLogRepository
	alerts     adapter.AlertSender
	mailer     adapter.Mailer
	adminEmail string
	log        *zerolog.Logger
}

func NewErrorSink(repo repository.ErrorLogRepository, alerts adapter.AlertSender, mailer adapter.Mailer, adminEmail string, logger *zerolog.Logger) *ErrorSink {
	l := logger.With().Str("component", "ErrorSink").Logger()
	return &ErrorSink{repo: repo, alerts: alerts, mailer: mailer, adminEmail: adminEmail, log: &l}
}

// Record fills in id and timestamp, stores the entry and fans out alerts for
// CRITICAL. IDs are ULIDs so the admin log view sorts by time without an
// extra index.
func (s *ErrorSink) Record(ctx context.Context, e *model.ErrorLog) {
	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.Level == "" {
		e.Level = model.ErrorLevelError
	}

	if err := s.repo.Append(ctx, nil, e); err != nil {
		s.log.Error().Err(err).Str("message", e.Message).Msg("failed to persist error log entry")
	}

	if e.Level == model.ErrorLevelCritical {
		s.fanOutCritical(ctx, e)
	}
}

// RecordError is the common shorthand for component failures.
func (s *ErrorSink) RecordError(ctx context.Context, source string, err error, paymentID *string) {
	s.Record(ctx, &model.ErrorLog{
		Level:     model.ErrorLevelError,
		Source:    source,
		Message:   err.Error(),
		PaymentID: paymentID,
	})
}

// RecordPanic captures a recovered panic with its stack.
func (s *ErrorSink) RecordPanic(ctx context.Context, source string, rec interface{}) {
	s.Record(ctx, &model.ErrorLog{
		Level:   model.ErrorLevelCritical,
		Source:  source,
		Message: fmt.Sprintf("panic: %v", rec),
		Stack:   string(debug.Stack()),
	})
}

func (s *ErrorSink) fanOutCritical(ctx context.Context, e *model.ErrorLog) {
	text := fmt.Sprintf("[CRITICAL] %s: %s (id %s)", e.Source, e.Message, e.ID)
	if s.alerts != nil {
		if err := s.alerts.Alert(ctx, text); err != nil {
			s.log.Error().Err(err).Msg("critical alert delivery failed")
		}
	}
	if s.mailer != nil && s.adminEmail != "" {
		body := fmt.Sprintf("<p>%s</p><pre>%s</pre>", text, e.Stack)
		if err := s.mailer.Send(ctx, s.adminEmail, "Critical failure: "+e.Source, body); err != nil {
			s.log.Error().Err(err).Msg("critical alert mail failed")
		}
	}
}
