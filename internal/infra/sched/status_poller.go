package sched

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"retail-pos-billing/internal/domain/model"
	"retail-pos-billing/internal/domain/ports/adapter"
	"retail-pos-billing/internal/domain/ports/repository"
	"retail-pos-billing/internal/infra/metrics"
	"retail-pos-billing/internal/infra/redis"
	"retail-pos-billing/internal/infra/worker"
	"retail-pos-billing/internal/usecase"
)

const (
	pollLockKey = "jobs:status_poll"
	jobNamePoll = "status_poll"

	// Metadata flag set once the poll budget is exhausted; the transaction
	// stays on the ledger for the sweep and the admin queue.
	metaPollGivenUp = "poll_given_up"
)

// StatusPoller actively queries the gateway for transactions stuck pending:
// lost webhooks, crashed deliveries, gateway hiccups. Singleton across
// instances via a redis lock; the actual finalization goes through the same
// idempotent entry point as every other trigger.
type StatusPoller struct {
	txns        repository.GatewayTransactionRepository
	jobFailures repository.JobFailureRepository
	gateway     adapter.PaymentGateway
	reconcileUC *usecase.ReconcileUseCase
	locker      redis.Locker
	pool        *worker.Pool

	interval    time.Duration
	staleAfter  time.Duration
	maxAttempts int

	mu       sync.Mutex
	attempts map[string]int // per-transaction polls this process has made

	log *zerolog.Logger
}

func NewStatusPoller(
	txns repository.GatewayTransactionRepository,
	jobFailures repository.JobFailureRepository,
	gateway adapter.PaymentGateway,
	reconcileUC *usecase.ReconcileUseCase,
	locker redis.Locker,
	pool *worker.Pool,
	interval, staleAfter time.Duration,
	maxAttempts int,
	logger *zerolog.Logger,
) *StatusPoller {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	l := logger.With().Str("component", "StatusPoller").Logger()
	return &StatusPoller{
		txns: txns, jobFailures: jobFailures, gateway: gateway,
		reconcileUC: reconcileUC, locker: locker, pool: pool,
		interval: interval, staleAfter: staleAfter, maxAttempts: maxAttempts,
		attempts: make(map[string]int),
		log:      &l,
	}
}

func (w *StatusPoller) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting status poller")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping status poller")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *StatusPoller) tick(ctx context.Context) {
	token, err := w.locker.TryLock(ctx, pollLockKey, w.interval)
	if err != nil {
		// Another instance holds the lock; not an error.
		return
	}
	defer func() { _ = w.locker.Unlock(ctx, pollLockKey, token) }()

	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.txns.ListPendingOlderThan(ctx, repository.NoTX, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("list pending failed")
		metrics.IncJobRun(jobNamePoll, false)
		return
	}

	for _, txn := range pending {
		if txn.CorrelationID == "" {
			continue
		}
		if given, _ := txn.Metadata[metaPollGivenUp].(bool); given {
			continue
		}
		t := txn
		if err := w.pool.Submit(func(ctx context.Context) error {
			return w.pollOne(ctx, t)
		}); err != nil {
			w.log.Warn().Err(err).Str("transaction_id", t.ID).Msg("submit poll task failed")
		}
	}
	metrics.IncJobRun(jobNamePoll, true)
}

// pollOne queries the gateway (with short bounded retries for transient
// errors) and pushes the answer through Finalize. Gateway I/O happens
// strictly outside any database transaction.
func (w *StatusPoller) pollOne(ctx context.Context, txn *model.GatewayTransaction) error {
	var signal model.PaymentSignal
	op := func() error {
		var err error
		signal, err = w.gateway.QueryStatus(ctx, txn.CorrelationID)
		return err
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		w.recordAttempt(ctx, txn, err)
		return nil // logged; next tick retries
	}

	if signal.ResultCode == nil {
		// Still running on the gateway side; counts against the budget so a
		// prompt abandoned forever eventually surfaces to an operator.
		w.recordAttempt(ctx, txn, nil)
		return nil
	}

	started := time.Now()
	outcome, err := w.reconcileUC.Finalize(ctx, signal)
	latency := int(time.Since(started).Milliseconds())
	if err != nil {
		metrics.ObserveReconcile("poll", "error", latency)
		return err
	}
	metrics.ObserveReconcile("poll", string(outcome), latency)
	if outcome == usecase.OutcomeActivated {
		metrics.IncActivation("poll")
	}
	w.clearAttempts(txn.ID)
	return nil
}

func (w *StatusPoller) recordAttempt(ctx context.Context, txn *model.GatewayTransaction, cause error) {
	w.mu.Lock()
	w.attempts[txn.ID]++
	n := w.attempts[txn.ID]
	w.mu.Unlock()

	if cause != nil {
		w.log.Warn().Err(cause).Str("transaction_id", txn.ID).Int("attempt", n).Msg("status query failed")
	}
	if n < w.maxAttempts {
		return
	}

	// Budget exhausted: record a permanent failure and stop polling this one.
	lastErr := "gateway returned no result"
	if cause != nil {
		lastErr = cause.Error()
	}
	failure := &model.JobFailure{
		ID:        ulid.Make().String(),
		Job:       jobNamePoll,
		EntityID:  txn.ID,
		Attempts:  n,
		LastError: lastErr,
		CreatedAt: time.Now(),
	}
	if err := w.jobFailures.Save(ctx, repository.NoTX, failure); err != nil {
		w.log.Error().Err(err).Str("transaction_id", txn.ID).Msg("record job failure failed")
		return
	}
	if err := w.txns.MergeMetadata(ctx, repository.NoTX, txn.ID, map[string]interface{}{metaPollGivenUp: true}); err != nil {
		w.log.Warn().Err(err).Str("transaction_id", txn.ID).Msg("mark given up failed")
	}
	metrics.IncJobPermanentFailure(jobNamePoll)
	w.clearAttempts(txn.ID)
	w.log.Error().Str("transaction_id", txn.ID).Int("attempts", n).Msg("poll budget exhausted, parked for operators")
}

func (w *StatusPoller) clearAttempts(id string) {
	w.mu.Lock()
	delete(w.attempts, id)
	w.mu.Unlock()
}
