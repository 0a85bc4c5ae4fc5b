// File: internal/usecase/activation_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"retail-pos-billing/internal/domain"
	"retail-pos-billing/internal/domain/model"
	"retail-pos-billing/internal/domain/ports/adapter"
	"retail-pos-billing/internal/domain/ports/repository"
)

// EntitlementCache is the read-path projection of a tenant's plan state.
// Derived, rebuildable; only the activation engine refreshes it.
type EntitlementCache interface {
	SetEntitlements(ctx context.Context, tenantID string, planID string, features []string, expiresAt time.Time) error
	Invalidate(ctx context.Context, tenantID string) error
}

// ActivationResult reports what the engine did.
type ActivationResult struct {
	Subscription *model.Subscription
	Path         string // immediate_upgrade | scheduled_downgrade
}

// ActivationEngine turns a resolved (subscription, proof-of-payment) pair into
// an active, billed subscription and refreshes the tenant's entitlements.
// All mutations happen in one transaction serialized per tenant; a failure at
// any step rolls back the whole activation.
type ActivationEngine struct {
	plans    repository.PlanRepository
	subs     repository.SubscriptionRepository
	tenants  repository.TenantRepository
	ledger   repository.BillingLedgerRepository
	audit    repository.AuditRepository
	tm       repository.TransactionManager
	cache    EntitlementCache
	notifier adapter.Notifier
	log      *zerolog.Logger
}

func NewActivationEngine(
	plans repository.PlanRepository,
	subs repository.SubscriptionRepository,
	tenants repository.TenantRepository,
	ledger repository.BillingLedgerRepository,
	audit repository.AuditRepository,
	tm repository.TransactionManager,
	cache EntitlementCache,
	notifier adapter.Notifier,
	logger *zerolog.Logger,
) *ActivationEngine {
	l := logger.With().Str("component", "ActivationEngine").Logger()
	return &ActivationEngine{
		plans: plans, subs: subs, tenants: tenants, ledger: ledger,
		audit: audit, tm: tm, cache: cache, notifier: notifier, log: &l,
	}
}

// Activate finalizes the subscription identified by subID using proof as the
// payment reference. actor is recorded as the verifier ("system" for
// gateway-driven activations). Returns domain.ErrAlreadyFinalized when a
// concurrent or repeated delivery won the race, domain.ErrPlanNotFound /
// domain.ErrInvalidBillingCycle on domain-fatal conditions; in those cases
// nothing has been mutated.
func (e *ActivationEngine) Activate(ctx context.Context, subID string, proof *string, actor string, meta map[string]interface{}) (*ActivationResult, error) {
	var res *ActivationResult
	var tenant *model.Tenant
	var plan *model.Plan

	err := e.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		// Re-fetch inside the tx; FindByID takes a row lock on the tx path.
		sub, err := e.subs.FindByID(ctx, tx, subID)
		if err != nil {
			return err
		}
		if err := e.tm.LockTenant(ctx, tx, sub.TenantID); err != nil {
			return err
		}
		// Idempotency re-check under the tenant lock. Whatever the caller saw
		// before the tx began may be stale by now.
		if sub.Finalized() {
			return domain.ErrAlreadyFinalized
		}

		tenant, err = e.tenants.FindByID(ctx, tx, sub.TenantID)
		if err != nil {
			return err
		}

		// Step 1: effective plan by id, falling back to the snapshot name.
		plan, err = e.resolvePlan(ctx, tx, sub)
		if err != nil {
			return err
		}

		// Step 2: billing-cycle duration.
		cycle := sub.BillingCycle
		if v, ok := meta["billing_cycle"].(string); ok && v != "" {
			cycle = v
		}
		duration, err := model.CycleDuration(cycle)
		if err != nil {
			return err
		}

		// Step 3: upgrade if the new plan's price is not below the current one.
		currentPrice, err := e.currentPlanPrice(ctx, tx, tenant)
		if err != nil {
			return err
		}
		upgrade := plan.Price >= currentPrice

		// Step 4: superseded attempts lose, on both paths.
		if _, err := e.subs.ExpireOtherSettleable(ctx, tx, sub.TenantID, sub.ID); err != nil {
			return err
		}

		current, err := e.subs.FindActiveByTenant(ctx, tx, sub.TenantID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		now := time.Now()
		path := model.ActivationPathImmediateUpgrade
		var start, end time.Time

		if !upgrade && current != nil && current.EndsAt != nil && current.EndsAt.After(now) {
			// Step 6: downgrade with a running window — schedule after it.
			path = model.ActivationPathScheduledDowngrade
			start = *current.EndsAt
			end = start.Add(duration)
		} else {
			// Step 5 (and step 6's immediate fallback): take over now.
			if current != nil {
				current.Status = model.SubscriptionStatusExpired
				current.IsActive = false
				current.UpdatedAt = now
				if err := e.subs.Save(ctx, tx, current); err != nil {
					return err
				}
			}
			start = now
			end = now.Add(duration)
			tenant.AssignPlan(plan, end)
			if err := e.tenants.UpdatePlanCache(ctx, tx, tenant); err != nil {
				return err
			}
		}

		// Step 7: persist the winner.
		sub.StartsAt = &start
		sub.EndsAt = &end
		sub.IsVerified = true
		sub.VerifiedAt = &now
		sub.VerifiedBy = &actor
		sub.PaymentReference = proof
		sub.UpdatedAt = now
		if path == model.ActivationPathImmediateUpgrade {
			sub.Status = model.SubscriptionStatusActive
			sub.IsActive = true
		} else {
			sub.Status = model.SubscriptionStatusScheduled
			sub.IsActive = false
		}
		sub.AppendNote(actor, "activated via "+path)
		if err := e.subs.Save(ctx, tx, sub); err != nil {
			return err
		}

		if err := e.settleLedger(ctx, tx, tenant, sub, actor, start, end); err != nil {
			return err
		}

		// Audit append is best-effort even inside the tx.
		e.appendAudit(ctx, tx, sub, actor, path, meta)

		res = &ActivationResult{Subscription: sub, Path: path}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Post-commit side effects; failures here never undo the activation.
	if res.Path == model.ActivationPathImmediateUpgrade {
		if err := e.cache.SetEntitlements(ctx, tenant.ID, plan.ID, plan.Features, *res.Subscription.EndsAt); err != nil {
			e.log.Warn().Err(err).Str("tenant_id", tenant.ID).Msg("entitlement cache refresh failed")
		}
	}
	event := model.EventSubscriptionActivated
	if res.Path == model.ActivationPathScheduledDowngrade {
		event = model.EventSubscriptionScheduled
	}
	if err := e.notifier.Publish(ctx, adapter.Event{
		Name:     event,
		TenantID: tenant.ID,
		EntityID: res.Subscription.ID,
		Payload: map[string]interface{}{
			"plan_id":   plan.ID,
			"plan_name": plan.Name,
			"starts_at": res.Subscription.StartsAt,
			"ends_at":   res.Subscription.EndsAt,
			"path":      res.Path,
		},
	}); err != nil {
		e.log.Warn().Err(err).Str("event", event).Msg("notify failed")
	}

	e.log.Info().
		Str("subscription_id", res.Subscription.ID).
		Str("tenant_id", tenant.ID).
		Str("path", res.Path).
		Msg("subscription activated")
	return res, nil
}

// Reject marks the subscription rejected with a recorded reason. Simpler than
// activation on purpose: no plan resolution, no entitlement side effects.
func (e *ActivationEngine) Reject(ctx context.Context, subID, actor, reason string) error {
	var sub *model.Subscription
	err := e.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		sub, err = e.subs.FindByID(ctx, tx, subID)
		if err != nil {
			return err
		}
		if err := e.tm.LockTenant(ctx, tx, sub.TenantID); err != nil {
			return err
		}
		if sub.Finalized() {
			return domain.ErrAlreadyFinalized
		}
		now := time.Now()
		sub.Status = model.SubscriptionStatusRejected
		sub.IsActive = false
		sub.UpdatedAt = now
		sub.AppendNote(actor, "rejected: "+reason)
		if err := e.subs.Save(ctx, tx, sub); err != nil {
			return err
		}
		if entry, err := e.ledger.FindBySubscriptionID(ctx, tx, sub.ID); err == nil {
			if err := e.ledger.SetApproval(ctx, tx, entry.ID, model.ApprovalStatusRejected, actor, &reason); err != nil {
				return err
			}
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if err := e.audit.Append(ctx, tx, &model.AuditEvent{
			ID:          ulid.Make().String(),
			Event:       model.EventSubscriptionRejected,
			Description: reason,
			Actor:       actor,
			TenantID:    sub.TenantID,
			EntityID:    sub.ID,
			CreatedAt:   now,
		}); err != nil {
			e.log.Warn().Err(err).Msg("audit append failed")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := e.notifier.Publish(ctx, adapter.Event{
		Name:     model.EventSubscriptionRejected,
		TenantID: sub.TenantID,
		EntityID: sub.ID,
		Payload:  map[string]interface{}{"reason": reason},
	}); err != nil {
		e.log.Warn().Err(err).Msg("notify failed")
	}
	return nil
}

// MarkForVerification parks a subscription for human follow-up after a
// domain-fatal activation error. Runs in its own small transaction.
func (e *ActivationEngine) MarkForVerification(ctx context.Context, subID, note string) error {
	return e.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := e.subs.FindByID(ctx, tx, subID)
		if err != nil {
			return err
		}
		if sub.Finalized() {
			return nil
		}
		sub.Status = model.SubscriptionStatusPendingVerification
		sub.UpdatedAt = time.Now()
		sub.AppendNote("system", note)
		return e.subs.Save(ctx, tx, sub)
	})
}

func (e *ActivationEngine) resolvePlan(ctx context.Context, tx repository.Tx, sub *model.Subscription) (*model.Plan, error) {
	plan, err := e.plans.FindByID(ctx, tx, sub.PlanID)
	if err == nil {
		return plan, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if sub.PlanName != "" {
		plan, err = e.plans.FindByName(ctx, tx, sub.PlanName)
		if err == nil {
			return plan, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("plan %q (%s): %w", sub.PlanName, sub.PlanID, domain.ErrPlanNotFound)
}

func (e *ActivationEngine) currentPlanPrice(ctx context.Context, tx repository.Tx, tenant *model.Tenant) (int64, error) {
	if tenant.PlanID == nil {
		return 0, nil
	}
	plan, err := e.plans.FindByID(ctx, tx, *tenant.PlanID)
	if errors.Is(err, domain.ErrNotFound) {
		// A deleted catalog entry must not block the tenant's next payment.
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return plan.Price, nil
}

// settleLedger approves the subscription's ledger entry and records the
// computed plan window, creating the entry first when the subscription was
// born through an orphaned completion signal.
func (e *ActivationEngine) settleLedger(ctx context.Context, tx repository.Tx, tenant *model.Tenant, sub *model.Subscription, actor string, start, end time.Time) error {
	entry, err := e.ledger.FindBySubscriptionID(ctx, tx, sub.ID)
	if errors.Is(err, domain.ErrNotFound) {
		entry = newLedgerEntry(tenant, sub)
		if err := e.ledger.Save(ctx, tx, entry); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	if err := e.ledger.SetWindow(ctx, tx, entry.ID, start, end, sub.PaymentReference); err != nil {
		return err
	}
	return e.ledger.SetApproval(ctx, tx, entry.ID, model.ApprovalStatusApproved, actor, nil)
}

func (e *ActivationEngine) appendAudit(ctx context.Context, tx repository.Tx, sub *model.Subscription, actor, path string, meta map[string]interface{}) {
	if err := e.audit.Append(ctx, tx, &model.AuditEvent{
		ID:          ulid.Make().String(),
		Event:       model.EventSubscriptionActivated,
		Description: "subscription finalized via " + path,
		Actor:       actor,
		TenantID:    sub.TenantID,
		EntityID:    sub.ID,
		Metadata:    meta,
		CreatedAt:   time.Now(),
	}); err != nil {
		e.log.Warn().Err(err).Str("subscription_id", sub.ID).Msg("audit append failed")
	}
}

// newLedgerEntry builds the admin-facing snapshot for a subscription that just
// entered a pending state. Callers guard with an existence check.
func newLedgerEntry(tenant *model.Tenant, sub *model.Subscription) *model.BillingLedgerEntry {
	now := time.Now()
	corr := ""
	if sub.PaymentReference != nil {
		corr = *sub.PaymentReference
	}
	return &model.BillingLedgerEntry{
		ID:             ulid.Make().String(),
		SubscriptionID: sub.ID,
		TenantID:       tenant.ID,
		TenantName:     tenant.Name,
		PlanName:       sub.PlanName,
		BillingCycle:   sub.BillingCycle,
		Amount:         sub.Amount,
		Currency:       sub.Currency,
		CorrelationID:  corr,
		ApprovalStatus: model.ApprovalStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
