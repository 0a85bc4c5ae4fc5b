// File: internal/usecase/lifecycle_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"retail-pos-billing/internal/domain"
	"retail-pos-billing/internal/domain/model"
	"retail-pos-billing/internal/domain/ports/adapter"
	"retail-pos-billing/internal/domain/ports/repository"
)

// LifecycleUseCase runs the scheduled plan transitions: finishing lapsed
// subscriptions and promoting deferred downgrades whose window has arrived.
// Driven by the expiry worker.
type LifecycleUseCase struct {
	subs        repository.SubscriptionRepository
	plans       repository.PlanRepository
	tenants     repository.TenantRepository
	jobFailures repository.JobFailureRepository
	tm          repository.TransactionManager
	cache       EntitlementCache
	notifier    adapter.Notifier
	log         *zerolog.Logger
}

func NewLifecycleUseCase(
	subs repository.SubscriptionRepository,
	plans repository.PlanRepository,
	tenants repository.TenantRepository,
	jobFailures repository.JobFailureRepository,
	tm repository.TransactionManager,
	cache EntitlementCache,
	notifier adapter.Notifier,
	logger *zerolog.Logger,
) *LifecycleUseCase {
	l := logger.With().Str("component", "LifecycleUseCase").Logger()
	return &LifecycleUseCase{
		subs: subs, plans: plans, tenants: tenants, jobFailures: jobFailures,
		tm: tm, cache: cache, notifier: notifier, log: &l,
	}
}

// FinishExpired expires active subscriptions whose window has lapsed and
// invalidates the affected tenants' entitlements. Returns how many finished.
func (u *LifecycleUseCase) FinishExpired(ctx context.Context) (int, error) {
	lapsed, err := u.subs.ListActiveLapsed(ctx, repository.NoTX, time.Now(), 200)
	if err != nil {
		return 0, err
	}

	finished := 0
	for _, candidate := range lapsed {
		subID := candidate.ID
		changed := false
		err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			sub, err := u.subs.FindByID(ctx, tx, subID)
			if err != nil {
				return err
			}
			if err := u.tm.LockTenant(ctx, tx, sub.TenantID); err != nil {
				return err
			}
			// Re-check under the lock; a renewal may have replaced it already.
			if sub.Status != model.SubscriptionStatusActive || sub.EndsAt == nil || sub.EndsAt.After(time.Now()) {
				return nil
			}
			sub.Status = model.SubscriptionStatusExpired
			sub.IsActive = false
			sub.UpdatedAt = time.Now()
			if err := u.subs.Save(ctx, tx, sub); err != nil {
				return err
			}

			tenant, err := u.tenants.FindByID(ctx, tx, sub.TenantID)
			if err != nil {
				return err
			}
			// Only clear the plan cache when it still points at this window.
			if tenant.PlanID != nil && *tenant.PlanID == sub.PlanID {
				tenant.PlanID = nil
				tenant.PlanExpiresAt = nil
				tenant.EnabledFeatures = nil
				if err := u.tenants.UpdatePlanCache(ctx, tx, tenant); err != nil {
					return err
				}
			}
			changed = true
			return nil
		})
		if err != nil {
			u.log.Error().Err(err).Str("subscription_id", subID).Msg("finish expired failed")
			continue
		}
		if !changed {
			continue
		}
		finished++

		if err := u.cache.Invalidate(ctx, candidate.TenantID); err != nil {
			u.log.Warn().Err(err).Str("tenant_id", candidate.TenantID).Msg("entitlement invalidate failed")
		}
		if err := u.notifier.Publish(ctx, adapter.Event{
			Name:     model.EventSubscriptionExpired,
			TenantID: candidate.TenantID,
			EntityID: candidate.ID,
		}); err != nil {
			u.log.Warn().Err(err).Msg("notify failed")
		}
	}
	return finished, nil
}

// PromoteScheduled activates deferred downgrades whose start has arrived.
// Returns how many were promoted.
func (u *LifecycleUseCase) PromoteScheduled(ctx context.Context) (int, error) {
	due, err := u.subs.ListScheduledDue(ctx, repository.NoTX, time.Now(), 200)
	if err != nil {
		return 0, err
	}

	promoted := 0
	for _, candidate := range due {
		subID := candidate.ID
		var tenant *model.Tenant
		var plan *model.Plan
		var parkReason string
		err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			sub, err := u.subs.FindByID(ctx, tx, subID)
			if err != nil {
				return err
			}
			if err := u.tm.LockTenant(ctx, tx, sub.TenantID); err != nil {
				return err
			}
			if sub.Status != model.SubscriptionStatusScheduled || sub.StartsAt == nil || sub.StartsAt.After(time.Now()) {
				return nil
			}

			// Resolve the plan before touching anything. A vanished plan
			// cannot heal on retry, so the subscription is parked for an
			// operator instead of failing this tx on every tick.
			plan, err = u.plans.FindByID(ctx, tx, sub.PlanID)
			if errors.Is(err, domain.ErrNotFound) {
				parkReason = "plan " + sub.PlanID + " missing at scheduled start"
				sub.Status = model.SubscriptionStatusPendingVerification
				sub.UpdatedAt = time.Now()
				sub.AppendNote("system", parkReason)
				return u.subs.Save(ctx, tx, sub)
			}
			if err != nil {
				return err
			}

			// Whatever is still active for the tenant yields now.
			current, err := u.subs.FindActiveByTenant(ctx, tx, sub.TenantID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			if current != nil {
				current.Status = model.SubscriptionStatusExpired
				current.IsActive = false
				current.UpdatedAt = time.Now()
				if err := u.subs.Save(ctx, tx, current); err != nil {
					return err
				}
			}

			sub.Status = model.SubscriptionStatusActive
			sub.IsActive = true
			sub.UpdatedAt = time.Now()
			sub.AppendNote("system", "scheduled window started")
			if err := u.subs.Save(ctx, tx, sub); err != nil {
				return err
			}

			tenant, err = u.tenants.FindByID(ctx, tx, sub.TenantID)
			if err != nil {
				return err
			}
			tenant.AssignPlan(plan, *sub.EndsAt)
			return u.tenants.UpdatePlanCache(ctx, tx, tenant)
		})
		if err != nil {
			u.log.Error().Err(err).Str("subscription_id", subID).Msg("promote scheduled failed")
			continue
		}
		if parkReason != "" {
			u.recordPromoteFailure(ctx, subID, parkReason)
			continue
		}
		if tenant == nil {
			continue // lost the re-check, nothing changed
		}
		promoted++

		if err := u.cache.SetEntitlements(ctx, tenant.ID, plan.ID, plan.Features, *candidate.EndsAt); err != nil {
			u.log.Warn().Err(err).Str("tenant_id", tenant.ID).Msg("entitlement cache refresh failed")
		}
		if err := u.notifier.Publish(ctx, adapter.Event{
			Name:     model.EventSubscriptionActivated,
			TenantID: tenant.ID,
			EntityID: candidate.ID,
			Payload:  map[string]interface{}{"path": model.ActivationPathScheduledDowngrade},
		}); err != nil {
			u.log.Warn().Err(err).Msg("notify failed")
		}
	}
	return promoted, nil
}

const jobNamePromote = "scheduled_promote"

// recordPromoteFailure is best-effort; the parked subscription already keeps
// the promotion from being retried.
func (u *LifecycleUseCase) recordPromoteFailure(ctx context.Context, subID, reason string) {
	failure := &model.JobFailure{
		ID:        ulid.Make().String(),
		Job:       jobNamePromote,
		EntityID:  subID,
		Attempts:  1,
		LastError: reason,
		CreatedAt: time.Now(),
	}
	if err := u.jobFailures.Save(ctx, repository.NoTX, failure); err != nil {
		u.log.Error().Err(err).Str("subscription_id", subID).Msg("record job failure failed")
	}
	u.log.Error().Str("subscription_id", subID).Str("reason", reason).Msg("scheduled promotion parked for operators")
}
