package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"retail-pos-billing/internal/infra/metrics"
	"retail-pos-billing/internal/usecase"
)

const jobNameExpiry = "subscription_expiry"

// ExpiryWorker periodically finishes lapsed subscriptions and promotes
// scheduled downgrades whose window has started.
type ExpiryWorker struct {
	interval    time.Duration
	lifecycleUC *usecase.LifecycleUseCase
	log         *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, lifecycleUC *usecase.LifecycleUseCase, logger *zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	l := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{interval: interval, lifecycleUC: lifecycleUC, log: &l}
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
			w.tick(ctx)
		}
	}
}

func (w *ExpiryWorker) tick(ctx context.Context) {
	ok := true

	expired, err := w.lifecycleUC.FinishExpired(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("finish expired failed")
		ok = false
	}
	if expired > 0 {
		metrics.IncSubscriptionsExpired(expired)
		w.log.Info().Int("count", expired).Msg("expired subscriptions finished")
	}

	promoted, err := w.lifecycleUC.PromoteScheduled(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("promote scheduled failed")
		ok = false
	}
	if promoted > 0 {
		metrics.IncSubscriptionsPromoted(promoted)
		w.log.Info().Int("count", promoted).Msg("scheduled subscriptions promoted")
	}

	metrics.IncJobRun(jobNameExpiry, ok)
}
