//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"retail-pos-billing/internal/domain"
	"retail-pos-billing/internal/domain/model"
	"retail-pos-billing/internal/domain/ports/repository"
)

// seedActiveTenant stores a tenant currently on currentPlan with an active
// subscription ending at endsAt, plus a pending subscription for nextPlan.
func seedActiveTenant(ctx context.Context, d *ucDeps, currentPlan, nextPlan *model.Plan, endsAt time.Time) {
	tenant, _ := model.NewTenant("tenant-1", "Mama Njeri Stores", "254700111222")
	_ = d.tenants.Save(ctx, repository.NoTX, tenant)
	_ = d.plans.Save(ctx, repository.NoTX, currentPlan)
	_ = d.plans.Save(ctx, repository.NoTX, nextPlan)

	current, _ := model.NewSubscription("sub-current", "tenant-1", currentPlan, model.BillingCycleMonthly)
	start := endsAt.Add(-model.MonthlyDurationDays * 24 * time.Hour)
	current.Status = model.SubscriptionStatusActive
	current.IsActive = true
	current.IsVerified = true
	current.StartsAt = &start
	current.EndsAt = &endsAt
	_ = d.subs.Save(ctx, repository.NoTX, current)

	tenant.AssignPlan(currentPlan, endsAt)
	_ = d.tenants.Save(ctx, repository.NoTX, tenant)

	next, _ := model.NewSubscription("sub-next", "tenant-1", nextPlan, model.BillingCycleMonthly)
	_ = d.subs.Save(ctx, repository.NoTX, next)
}

func TestActivate_UpgradeTakesOverImmediately(t *testing.T) {
	ctx := context.Background()
	d := newUCDeps()

	basic, _ := model.NewPlan("plan-basic", "Starter", 99_900, "KES", []string{"pos"})
	premium, _ := model.NewPlan("plan-premium", "Enterprise", 799_900, "KES", []string{"pos", "api_access"})
	seedActiveTenant(ctx, d, basic, premium, time.Now().Add(20*24*time.Hour))

	proof := "RCP100"
	res, err := d.engine.Activate(ctx, "sub-next", &proof, "system", nil)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if res.Path != model.ActivationPathImmediateUpgrade {
		t.Fatalf("expected immediate upgrade, got %s", res.Path)
	}

	next, _ := d.subs.FindByID(ctx, repository.NoTX, "sub-next")
	if next.Status != model.SubscriptionStatusActive {
		t.Errorf("expected new subscription active, got %s", next.Status)
	}
	current, _ := d.subs.FindByID(ctx, repository.NoTX, "sub-current")
	if current.Status != model.SubscriptionStatusExpired {
		t.Errorf("expected old subscription expired, got %s", current.Status)
	}

	counts, _ := d.subs.CountByStatus(ctx, repository.NoTX)
	if counts[model.SubscriptionStatusActive] != 1 {
		t.Errorf("at most one active subscription per tenant; got %d", counts[model.SubscriptionStatusActive])
	}

	tenant, _ := d.tenants.FindByID(ctx, repository.NoTX, "tenant-1")
	if tenant.PlanID == nil || *tenant.PlanID != "plan-premium" {
		t.Error("expected tenant moved to the premium plan")
	}
	if len(d.cache.Sets) != 1 {
		t.Errorf("expected an entitlement refresh on the immediate path, got %d", len(d.cache.Sets))
	}
}

func TestActivate_DowngradeIsScheduled(t *testing.T) {
	ctx := context.Background()
	d := newUCDeps()

	premium, _ := model.NewPlan("plan-premium", "Enterprise", 799_900, "KES", []string{"pos", "api_access"})
	basic, _ := model.NewPlan("plan-basic", "Starter", 99_900, "KES", []string{"pos"})
	currentEnd := time.Now().Add(20 * 24 * time.Hour)
	seedActiveTenant(ctx, d, premium, basic, currentEnd)

	proof := "RCP200"
	res, err := d.engine.Activate(ctx, "sub-next", &proof, "system", nil)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if res.Path != model.ActivationPathScheduledDowngrade {
		t.Fatalf("expected scheduled downgrade, got %s", res.Path)
	}

	next, _ := d.subs.FindByID(ctx, repository.NoTX, "sub-next")
	if next.Status != model.SubscriptionStatusScheduled {
		t.Errorf("expected scheduled status, got %s", next.Status)
	}
	if next.StartsAt == nil || !next.StartsAt.Equal(currentEnd) {
		t.Error("expected the new window to start when the current one ends")
	}
	if !next.IsVerified {
		t.Error("a scheduled downgrade is still paid and verified")
	}

	// The running premium window is untouched and the tenant keeps it.
	current, _ := d.subs.FindByID(ctx, repository.NoTX, "sub-current")
	if current.Status != model.SubscriptionStatusActive {
		t.Errorf("current subscription must keep running, got %s", current.Status)
	}
	tenant, _ := d.tenants.FindByID(ctx, repository.NoTX, "tenant-1")
	if tenant.PlanID == nil || *tenant.PlanID != "plan-premium" {
		t.Error("tenant must keep the premium plan until the window ends")
	}
	if len(d.cache.Sets) != 0 {
		t.Error("no entitlement refresh on the deferred path")
	}
}

func TestActivate_EqualPriceCountsAsUpgrade(t *testing.T) {
	ctx := context.Background()
	d := newUCDeps()

	planA, _ := model.NewPlan("plan-a", "Business", 299_900, "KES", []string{"pos"})
	planB, _ := model.NewPlan("plan-b", "Business Annual", 299_900, "KES", []string{"pos"})
	seedActiveTenant(ctx, d, planA, planB, time.Now().Add(10*24*time.Hour))

	proof := "RCP300"
	res, err := d.engine.Activate(ctx, "sub-next", &proof, "system", nil)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if res.Path != model.ActivationPathImmediateUpgrade {
		t.Errorf("a renewal at the same price activates immediately, got %s", res.Path)
	}
}

func TestActivate_AlreadyFinalizedIsRejected(t *testing.T) {
	ctx := context.Background()
	d := newUCDeps()

	basic, _ := model.NewPlan("plan-basic", "Starter", 99_900, "KES", []string{"pos"})
	premium, _ := model.NewPlan("plan-premium", "Enterprise", 799_900, "KES", []string{"pos"})
	seedActiveTenant(ctx, d, basic, premium, time.Now().Add(20*24*time.Hour))

	proof := "RCP400"
	if _, err := d.engine.Activate(ctx, "sub-next", &proof, "system", nil); err != nil {
		t.Fatalf("first activation: %v", err)
	}
	_, err := d.engine.Activate(ctx, "sub-next", &proof, "system", nil)
	if !errors.Is(err, domain.ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized, got: %v", err)
	}
}

func TestActivate_SupersededAttemptsExpire(t *testing.T) {
	ctx := context.Background()
	d := newUCDeps()

	basic, _ := model.NewPlan("plan-basic", "Starter", 99_900, "KES", []string{"pos"})
	premium, _ := model.NewPlan("plan-premium", "Enterprise", 799_900, "KES", []string{"pos"})
	seedActiveTenant(ctx, d, basic, premium, time.Now().Add(20*24*time.Hour))

	// A second, abandoned attempt from the same tenant.
	stale, _ := model.NewSubscription("sub-stale", "tenant-1", basic, model.BillingCycleMonthly)
	_ = d.subs.Save(ctx, repository.NoTX, stale)

	proof := "RCP500"
	if _, err := d.engine.Activate(ctx, "sub-next", &proof, "system", nil); err != nil {
		t.Fatalf("activate: %v", err)
	}

	got, _ := d.subs.FindByID(ctx, repository.NoTX, "sub-stale")
	if got.Status != model.SubscriptionStatusExpired {
		t.Errorf("expected the superseded attempt expired, got %s", got.Status)
	}
}

func TestActivate_SerializesPerTenant(t *testing.T) {
	ctx := context.Background()
	d := newUCDeps()

	basic, _ := model.NewPlan("plan-basic", "Starter", 99_900, "KES", []string{"pos"})
	premium, _ := model.NewPlan("plan-premium", "Enterprise", 799_900, "KES", []string{"pos"})
	seedActiveTenant(ctx, d, basic, premium, time.Now().Add(20*24*time.Hour))

	proof := "RCP600"
	if _, err := d.engine.Activate(ctx, "sub-next", &proof, "system", nil); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if len(d.tm.LockCalls) == 0 || d.tm.LockCalls[0] != "tenant-1" {
		t.Errorf("expected the tenant lock to be taken, got %v", d.tm.LockCalls)
	}
}

func TestReject_RecordsReasonAndLedger(t *testing.T) {
	ctx := context.Background()
	d := newUCDeps()
	d.seedCheckout(ctx, "tenant-1", "sub-1", "ws_CO_001", 299_900)

	if err := d.engine.Reject(ctx, "sub-1", "admin-7", "amount mismatch"); err != nil {
		t.Fatalf("reject: %v", err)
	}

	sub, _ := d.subs.FindByID(ctx, repository.NoTX, "sub-1")
	if sub.Status != model.SubscriptionStatusRejected {
		t.Errorf("expected rejected, got %s", sub.Status)
	}
	if len(sub.PaymentTrail) == 0 {
		t.Error("expected a payment trail note")
	}
	if len(d.audit.Events) == 0 || d.audit.Events[0].Event != model.EventSubscriptionRejected {
		t.Error("expected a subscription.rejected audit event")
	}
}
