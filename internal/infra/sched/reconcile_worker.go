package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/jabinweb/sciocare-sub001/internal/domain"
	"github.com/jabinweb/sciocare-sub001/internal/domain/ports/repository"
	"github.com/jabinweb/sciocare-sub001/internal/infra/metrics"
	"github.com/jabinweb/sciocare-sub001/internal/usecase"
)

// ReconcileWorker sweeps payments stuck in PENDING and asks the gateway
// whether they actually settled. It is the safety net behind missed
// client callbacks and dropped webhooks.
type ReconcileWorker struct {
	interval   time.Duration
	staleAfter time.Duration
	batchSize  int
	payments   repository.PaymentRepository
	reconcile  usecase.ReconcileUseCase
	log        *zerolog.Logger
}

func NewReconcileWorker(
	interval, staleAfter time.Duration,
	batchSize int,
	payments repository.PaymentRepository,
	reconcile usecase.ReconcileUseCase,
	logger *zerolog.Logger,
) *ReconcileWorker {
	if batchSize <= 0 {
		batchSize = 200
	}
	l := logger.With().Str("component", "reconcile_worker").Logger()
	return &ReconcileWorker{
		interval:   interval,
		staleAfter: staleAfter,
		batchSize:  batchSize,
		payments:   payments,
		reconcile:  reconcile,
		log:        &l,
	}
}

func (w *ReconcileWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting reconcile worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping reconcile worker")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ReconcileWorker) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.payments.ListPendingOlderThan(ctx, nil, cutoff, w.batchSize)
	if err != nil {
		metrics.IncReconcileSweep("list_error")
		w.log.Error().Err(err).Msg("listing stale payments failed")
		return
	}
	if len(pending) == 0 {
		metrics.IncReconcileSweep("empty")
		return
	}

	settled := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return
		}
		err := w.reconcile.ConfirmPending(ctx, p)
		switch {
		case err == nil:
			settled++
		case errors.Is(err, domain.ErrLockNotAcquired):
			// Someone else is verifying this payment right now. Skip it,
			// the next sweep will pick it up if it is still pending.
		case errors.Is(err, domain.ErrPaymentNotCompleted):
			// Still unpaid at the gateway. Leave it PENDING.
		default:
			w.log.Warn().Err(err).Str("payment_id", p.ID).Msg("confirm failed")
		}
	}
	metrics.IncReconcileSweep("done")
	w.log.Info().Int("pending", len(pending)).Int("settled", settled).Msg("reconcile sweep finished")
}
