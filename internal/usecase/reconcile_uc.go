// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"retail-pos-billing/internal/domain"
	"retail-pos-billing/internal/domain/model"
	"retail-pos-billing/internal/domain/ports/repository"
)

// Outcome of one Finalize call.
type ReconcileOutcome string

const (
	OutcomeActivated     ReconcileOutcome = "activated"      // includes scheduled downgrades
	OutcomeAlreadyActive ReconcileOutcome = "already_active" // duplicate delivery, no-op
	OutcomeUnresolved    ReconcileOutcome = "unresolved"     // no matching subscription yet; sweep will retry
	OutcomePaymentFailed ReconcileOutcome = "payment_failed" // definitive gateway failure recorded
	OutcomePending       ReconcileOutcome = "pending"        // gateway has no result yet
	OutcomeManualReview  ReconcileOutcome = "manual_review"  // domain-fatal error parked for an operator
)

// ReconcileUseCase is the single idempotent entry point every payment trigger
// calls: webhook intake, the status poller, the sweep job and admin actions
// all converge here. No other code path may invoke the activation engine for
// gateway-driven signals.
type ReconcileUseCase struct {
	txns     repository.GatewayTransactionRepository
	audit    repository.AuditRepository
	resolver *CorrelationResolver
	engine   *ActivationEngine
	log      *zerolog.Logger

	// upsertLocks serializes the find-or-create in upsertTransaction per
	// correlation id. The Save upsert keys on the row id, so two concurrent
	// deliveries of the same uncorrelated signal would otherwise both miss
	// the lookup and insert two canonical rows for one payment.
	upsertLocks [64]sync.Mutex
}

func NewReconcileUseCase(
	txns repository.GatewayTransactionRepository,
	audit repository.AuditRepository,
	resolver *CorrelationResolver,
	engine *ActivationEngine,
	logger *zerolog.Logger,
) *ReconcileUseCase {
	l := logger.With().Str("component", "ReconcileUseCase").Logger()
	return &ReconcileUseCase{txns: txns, audit: audit, resolver: resolver, engine: engine, log: &l}
}

// Finalize records the signal on the gateway ledger and, when it represents a
// successful payment, resolves and activates the matching subscription.
// Safe to call any number of times with the same signal from any source.
func (u *ReconcileUseCase) Finalize(ctx context.Context, signal model.PaymentSignal) (ReconcileOutcome, error) {
	log := u.log.With().
		Str("source", signal.Source).
		Str("correlation_id", signal.CorrelationID).
		Str("receipt", signal.Receipt).
		Logger()

	txn, err := u.upsertTransaction(ctx, signal)
	if err != nil {
		return "", err
	}

	// Step 1: status gate on the stored record, which is authoritative once a
	// definitive result has been applied. Non-success is recorded, never
	// activated.
	switch txn.Status {
	case model.TransactionStatusPending:
		return OutcomePending, nil
	case model.TransactionStatusFailed:
		log.Info().Int("result_code", *txn.ResultCode).Str("desc", txn.ResultDesc).Msg("payment failed, recorded")
		u.appendFailureAudit(ctx, txn, signal)
		return OutcomePaymentFailed, nil
	}

	// Step 2: correlation. A miss is expected under ordering races; the
	// transaction stays on the ledger and the sweep retries later.
	hint := signal
	if hint.TenantID == "" {
		hint.TenantID = txn.TenantID
	}
	sub, err := u.resolver.Resolve(ctx, repository.NoTX, hint)
	if errors.Is(err, domain.ErrNotFound) {
		log.Info().Msg("signal unresolved, left for sweep")
		return OutcomeUnresolved, nil
	}
	if err != nil {
		return "", err
	}

	// Step 3: idempotency gate before any write. Re-checked under the
	// tenant lock inside the engine.
	if sub.Finalized() {
		u.linkTransaction(ctx, txn, sub.ID)
		return OutcomeAlreadyActive, nil
	}

	// Step 4: activate; domain-fatal errors park the subscription for a
	// human instead of propagating.
	proof := proofOf(signal, txn)
	if _, err := u.engine.Activate(ctx, sub.ID, proof, "system", signal.Metadata); err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyFinalized):
			u.linkTransaction(ctx, txn, sub.ID)
			return OutcomeAlreadyActive, nil
		case errors.Is(err, domain.ErrPlanNotFound), errors.Is(err, domain.ErrInvalidBillingCycle):
			log.Error().Err(err).Str("subscription_id", sub.ID).Msg("domain-fatal activation error, parked for review")
			if mvErr := u.engine.MarkForVerification(ctx, sub.ID, err.Error()); mvErr != nil {
				log.Error().Err(mvErr).Msg("failed to park subscription")
			}
			return OutcomeManualReview, nil
		default:
			return "", err
		}
	}

	u.linkTransaction(ctx, txn, sub.ID)
	return OutcomeActivated, nil
}

// upsertTransaction locates the canonical gateway record for the signal,
// creating it lazily (flagged orphaned) when a completion arrived before the
// initiation write, and applies any definitive result exactly once.
func (u *ReconcileUseCase) upsertTransaction(ctx context.Context, signal model.PaymentSignal) (*model.GatewayTransaction, error) {
	lock := u.lockFor(signal)
	lock.Lock()
	defer lock.Unlock()

	txn, err := u.findTransaction(ctx, signal)
	if errors.Is(err, domain.ErrNotFound) {
		now := time.Now()
		txn = &model.GatewayTransaction{
			ID:            uuid.NewString(),
			TenantID:      signal.TenantID,
			CorrelationID: signal.CorrelationID,
			Phone:         signal.Phone,
			Amount:        signal.Amount,
			Status:        model.ResolveStatus(nil),
			Orphaned:      true,
			Metadata:      signal.Metadata,
			RawPayload:    signal.RawPayload,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		u.log.Warn().Str("correlation_id", signal.CorrelationID).Msg("no initiation record, creating orphaned transaction")
	} else if err != nil {
		return nil, err
	}

	if signal.ResultCode != nil && txn.ResultCode == nil {
		var receipt *string
		if signal.Receipt != "" {
			receipt = &signal.Receipt
		}
		txn.ApplyResult(*signal.ResultCode, signal.ResultDesc, receipt, time.Now())
		if len(signal.RawPayload) > 0 {
			txn.RawPayload = signal.RawPayload
		}
	} else {
		// Repeat delivery: enrich metadata only, result fields are immutable.
		txn.Status = model.ResolveStatus(txn.ResultCode)
		txn.UpdatedAt = time.Now()
	}
	if err := u.txns.Save(ctx, repository.NoTX, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// lockFor stripes by correlation id, falling back to the receipt for signals
// that carry none. findTransaction uses the same key order.
func (u *ReconcileUseCase) lockFor(signal model.PaymentSignal) *sync.Mutex {
	key := signal.CorrelationID
	if key == "" {
		key = signal.Receipt
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return &u.upsertLocks[h.Sum32()%uint32(len(u.upsertLocks))]
}

func (u *ReconcileUseCase) findTransaction(ctx context.Context, signal model.PaymentSignal) (*model.GatewayTransaction, error) {
	if signal.CorrelationID != "" {
		t, err := u.txns.FindByCorrelationID(ctx, repository.NoTX, signal.CorrelationID)
		if err == nil || !errors.Is(err, domain.ErrNotFound) {
			return t, err
		}
	}
	if signal.Receipt != "" {
		t, err := u.txns.FindByReceipt(ctx, repository.NoTX, signal.Receipt)
		if err == nil || !errors.Is(err, domain.ErrNotFound) {
			return t, err
		}
	}
	return nil, domain.ErrNotFound
}

// linkTransaction is idempotent and best-effort; a failed link is retried by
// the next delivery of the same signal.
func (u *ReconcileUseCase) linkTransaction(ctx context.Context, txn *model.GatewayTransaction, subID string) {
	if txn.SubscriptionID != nil && *txn.SubscriptionID == subID {
		return
	}
	if err := u.txns.LinkSubscription(ctx, repository.NoTX, txn.ID, subID); err != nil {
		u.log.Warn().Err(err).Str("transaction_id", txn.ID).Msg("link transaction failed")
	}
}

func (u *ReconcileUseCase) appendFailureAudit(ctx context.Context, txn *model.GatewayTransaction, signal model.PaymentSignal) {
	e := &model.AuditEvent{
		ID:          ulid.Make().String(),
		Event:       model.EventPaymentFailed,
		Description: signal.ResultDesc,
		Actor:       "system",
		TenantID:    txn.TenantID,
		EntityID:    txn.ID,
		Metadata:    map[string]interface{}{"result_code": signal.ResultCode, "source": signal.Source},
		CreatedAt:   time.Now(),
	}
	if err := u.audit.Append(ctx, repository.NoTX, e); err != nil {
		u.log.Warn().Err(err).Msg("audit append failed")
	}
}

// proofOf prefers the durable receipt over the correlation id.
func proofOf(signal model.PaymentSignal, txn *model.GatewayTransaction) *string {
	if signal.Receipt != "" {
		return &signal.Receipt
	}
	if txn.Receipt != nil && *txn.Receipt != "" {
		return txn.Receipt
	}
	if signal.CorrelationID != "" {
		return &signal.CorrelationID
	}
	return nil
}
