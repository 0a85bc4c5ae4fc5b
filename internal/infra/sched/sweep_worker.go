package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"retail-pos-billing/internal/domain/model"
	"retail-pos-billing/internal/domain/ports/repository"
	"retail-pos-billing/internal/infra/metrics"
	"retail-pos-billing/internal/infra/redis"
	"retail-pos-billing/internal/usecase"
)

const (
	sweepLockKey = "jobs:reconcile_sweep"
	jobNameSweep = "reconcile_sweep"
)

// SweepWorker is the safety net for ordering races: succeeded transactions
// that never got correlated (completion arrived before the initiation write,
// or correlation failed transiently) are re-fed through Finalize. An entry
// that still cannot be resolved stays on the ledger untouched.
type SweepWorker struct {
	txns        repository.GatewayTransactionRepository
	reconcileUC *usecase.ReconcileUseCase
	locker      redis.Locker
	interval    time.Duration
	log         *zerolog.Logger
}

func NewSweepWorker(
	txns repository.GatewayTransactionRepository,
	reconcileUC *usecase.ReconcileUseCase,
	locker redis.Locker,
	interval time.Duration,
	logger *zerolog.Logger,
) *SweepWorker {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	l := logger.With().Str("component", "SweepWorker").Logger()
	return &SweepWorker{txns: txns, reconcileUC: reconcileUC, locker: locker, interval: interval, log: &l}
}

func (w *SweepWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting sweep worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping sweep worker")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.log.Error().Err(err).Msg("sweep cycle failed")
			}
		}
	}
}

// RunOnce executes one sweep cycle and reports how many transactions were
// re-fed. Also reachable from the admin API for on-demand runs.
func (w *SweepWorker) RunOnce(ctx context.Context) (int, error) {
	token, err := w.locker.TryLock(ctx, sweepLockKey, w.interval)
	if err != nil {
		return 0, err
	}
	defer func() { _ = w.locker.Unlock(ctx, sweepLockKey, token) }()

	unlinked, err := w.txns.ListSucceededUnlinked(ctx, repository.NoTX, 200)
	if err != nil {
		metrics.IncJobRun(jobNameSweep, false)
		return 0, err
	}

	processed := 0
	for _, txn := range unlinked {
		signal := model.PaymentSignal{
			Source:        "sweep",
			CorrelationID: txn.CorrelationID,
			TenantID:      txn.TenantID,
			Phone:         txn.Phone,
			Amount:        txn.Amount,
			ResultCode:    txn.ResultCode,
			ResultDesc:    txn.ResultDesc,
			Metadata:      txn.Metadata,
		}
		if txn.Receipt != nil {
			signal.Receipt = *txn.Receipt
		}

		started := time.Now()
		outcome, err := w.reconcileUC.Finalize(ctx, signal)
		latency := int(time.Since(started).Milliseconds())
		if err != nil {
			metrics.ObserveReconcile("sweep", "error", latency)
			w.log.Error().Err(err).Str("transaction_id", txn.ID).Msg("sweep finalize failed")
			continue
		}
		metrics.ObserveReconcile("sweep", string(outcome), latency)
		if outcome == usecase.OutcomeActivated {
			metrics.IncActivation("sweep")
		}
		processed++
	}
	metrics.IncJobRun(jobNameSweep, true)
	if processed > 0 {
		w.log.Info().Int("processed", processed).Msg("sweep cycle done")
	}
	return processed, nil
}
