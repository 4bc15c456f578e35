package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jabinweb/sciocare-sub001/internal/domain/ports/repository"
	"github.com/jabinweb/sciocare-sub001/internal/infra/metrics"
)

// ExpiryWorker flips subscriptions whose academic term has ended to EXPIRED.
type ExpiryWorker struct {
	interval time.Duration
	subs     repository.SubscriptionRepository
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, subs repository.SubscriptionRepository, logger *zerolog.Logger) *ExpiryWorker {
	l := logger.With().Str("component", "expiry_worker").Logger()
	return &ExpiryWorker{interval: interval, subs: subs, log: &l}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.subs.ExpireOverdue(ctx, nil, time.Now())
			if err != nil {
				w.log.Error().Err(err).Msg("expiry pass failed")
				continue
			}
			if n > 0 {
				metrics.IncSubscriptionsExpired(n)
				w.log.Info().Int64("count", n).Msg("subscriptions expired")
			}
		}
	}
}
