//go:build !integration

package model_test

import (
	"errors"
	"testing"
	"time"

	"retail-pos-billing/internal/domain"
	"retail-pos-billing/internal/domain/model"
)

func testPlan(t *testing.T) *model.Plan {
	t.Helper()
	p, err := model.NewPlan("plan-1", "Business", 299_900, "KES", []string{"pos"})
	if err != nil {
		t.Fatalf("new plan: %v", err)
	}
	return p
}

func TestNewSubscription_StartsPending(t *testing.T) {
	sub, err := model.NewSubscription("sub-1", "tenant-1", testPlan(t), model.BillingCycleMonthly)
	if err != nil {
		t.Fatalf("new subscription: %v", err)
	}
	if sub.Status != model.SubscriptionStatusPending {
		t.Errorf("expected pending, got %s", sub.Status)
	}
	if sub.PlanName != "Business" || sub.Amount != 299_900 {
		t.Error("expected the plan snapshot copied onto the subscription")
	}
	if sub.IsActive || sub.IsVerified {
		t.Error("a fresh subscription is neither active nor verified")
	}
}

func TestNewSubscription_RequiresIdentity(t *testing.T) {
	if _, err := model.NewSubscription("", "tenant-1", testPlan(t), model.BillingCycleMonthly); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("missing id: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := model.NewSubscription("sub-1", "tenant-1", nil, model.BillingCycleMonthly); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("missing plan: expected ErrInvalidArgument, got %v", err)
	}
}

func TestFinalized(t *testing.T) {
	sub, _ := model.NewSubscription("sub-1", "tenant-1", testPlan(t), model.BillingCycleMonthly)
	if sub.Finalized() {
		t.Error("a pending subscription is not finalized")
	}

	sub.Status = model.SubscriptionStatusActive
	if !sub.Finalized() {
		t.Error("an active subscription is finalized")
	}

	// A deferred downgrade is paid and verified; only its window is pending.
	sub.Status = model.SubscriptionStatusScheduled
	if !sub.Finalized() {
		t.Error("a scheduled subscription is finalized")
	}

	sub.Status = model.SubscriptionStatusRejected
	sub.IsVerified = false
	if sub.Finalized() {
		t.Error("a rejected, unverified subscription is not finalized")
	}
}

func TestSettleable(t *testing.T) {
	cases := map[model.SubscriptionStatus]bool{
		model.SubscriptionStatusInitiated:           true,
		model.SubscriptionStatusPending:             true,
		model.SubscriptionStatusPendingVerification: true,
		model.SubscriptionStatusScheduled:           false,
		model.SubscriptionStatusActive:              false,
		model.SubscriptionStatusExpired:             false,
		model.SubscriptionStatusCancelled:           false,
		model.SubscriptionStatusRejected:            false,
	}
	for status, want := range cases {
		sub := &model.Subscription{Status: status}
		if sub.Settleable() != want {
			t.Errorf("%s: expected settleable=%v", status, want)
		}
	}
}

func TestAppendNote_IsAppendOnly(t *testing.T) {
	sub, _ := model.NewSubscription("sub-1", "tenant-1", testPlan(t), model.BillingCycleMonthly)
	sub.AppendNote("system", "first")
	first := sub.PaymentTrail[0]
	sub.AppendNote("admin-1", "second")

	if len(sub.PaymentTrail) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(sub.PaymentTrail))
	}
	if sub.PaymentTrail[0] != first {
		t.Error("existing trail entries must not be rewritten")
	}
	if sub.PaymentTrail[1].Actor != "admin-1" || sub.PaymentTrail[1].Note != "second" {
		t.Error("expected the new note appended last")
	}
	if sub.PaymentTrail[1].At.IsZero() {
		t.Error("expected the note timestamped")
	}
}

func TestCycleDuration(t *testing.T) {
	if d, err := model.CycleDuration(model.BillingCycleMonthly); err != nil || d != model.MonthlyDurationDays*24*time.Hour {
		t.Errorf("monthly: got %v, %v", d, err)
	}
	if d, err := model.CycleDuration(model.BillingCycleYearly); err != nil || d != model.YearlyDurationDays*24*time.Hour {
		t.Errorf("yearly: got %v, %v", d, err)
	}
	// Legacy checkouts without the field behave as monthly.
	if d, err := model.CycleDuration(""); err != nil || d != model.MonthlyDurationDays*24*time.Hour {
		t.Errorf("empty: got %v, %v", d, err)
	}
	if _, err := model.CycleDuration("weekly"); !errors.Is(err, domain.ErrInvalidBillingCycle) {
		t.Errorf("unknown: expected ErrInvalidBillingCycle, got %v", err)
	}
}
