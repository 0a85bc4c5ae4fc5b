// File: internal/usecase/admin_uc.go
package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"retail-pos-billing/internal/domain"
	"retail-pos-billing/internal/domain/model"
	"retail-pos-billing/internal/domain/ports/repository"
)

// AdminBillingUseCase backs the operator surface: the pending-verification
// queue, manual approve/reject of ambiguous payments, and permanent job
// failures. Approval calls the activation engine directly with the operator's
// identity; it does not re-run payment-signal resolution.
type AdminBillingUseCase struct {
	ledger      repository.BillingLedgerRepository
	jobFailures repository.JobFailureRepository
	engine      *ActivationEngine
	log         *zerolog.Logger
}

func NewAdminBillingUseCase(
	ledger repository.BillingLedgerRepository,
	jobFailures repository.JobFailureRepository,
	engine *ActivationEngine,
	logger *zerolog.Logger,
) *AdminBillingUseCase {
	l := logger.With().Str("component", "AdminBillingUseCase").Logger()
	return &AdminBillingUseCase{ledger: ledger, jobFailures: jobFailures, engine: engine, log: &l}
}

// Approve activates the subscription behind a ledger entry on an operator's
// say-so. Idempotent: approving an already finalized subscription is a no-op.
func (u *AdminBillingUseCase) Approve(ctx context.Context, entryID, actorID string) error {
	entry, err := u.ledger.FindByID(ctx, repository.NoTX, entryID)
	if err != nil {
		return err
	}
	if entry.ApprovalStatus == model.ApprovalStatusRejected {
		return domain.ErrNotPendingEntry
	}
	proof := entry.Receipt
	if proof == nil && entry.CorrelationID != "" {
		proof = &entry.CorrelationID
	}
	meta := map[string]interface{}{"billing_cycle": entry.BillingCycle, "approved_by": actorID}
	_, err = u.engine.Activate(ctx, entry.SubscriptionID, proof, actorID, meta)
	if errors.Is(err, domain.ErrAlreadyFinalized) {
		return nil
	}
	return err
}

// Reject marks the subscription rejected with a reason. No entitlement side
// effects; the tenant keeps whatever plan it had.
func (u *AdminBillingUseCase) Reject(ctx context.Context, entryID, actorID, reason string) error {
	entry, err := u.ledger.FindByID(ctx, repository.NoTX, entryID)
	if err != nil {
		return err
	}
	if entry.ApprovalStatus != model.ApprovalStatusPending {
		return domain.ErrNotPendingEntry
	}
	return u.engine.Reject(ctx, entry.SubscriptionID, actorID, reason)
}

// PendingQueue lists ledger entries awaiting a decision.
func (u *AdminBillingUseCase) PendingQueue(ctx context.Context, limit int) ([]*model.BillingLedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	return u.ledger.ListByApprovalStatus(ctx, repository.NoTX, model.ApprovalStatusPending, limit)
}

// RecentFailures lists background jobs that exhausted their retry budget.
func (u *AdminBillingUseCase) RecentFailures(ctx context.Context, limit int) ([]*model.JobFailure, error) {
	if limit <= 0 {
		limit = 100
	}
	return u.jobFailures.ListRecent(ctx, repository.NoTX, limit)
}
