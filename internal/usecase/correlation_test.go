//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"retail-pos-billing/internal/domain"
	"retail-pos-billing/internal/domain/model"
	"retail-pos-billing/internal/domain/ports/repository"
	"retail-pos-billing/internal/usecase"
)

func TestResolve_DirectSubscriptionID(t *testing.T) {
	ctx := context.Background()
	d := newUCDeps()
	d.seedCheckout(ctx, "tenant-1", "sub-1", "ws_CO_001", 299_900)

	sub, err := d.resolver.Resolve(ctx, repository.NoTX, model.PaymentSignal{SubscriptionID: "sub-1"})
	if err != nil {
		t.Fatalf("expected a match, got: %v", err)
	}
	if sub.ID != "sub-1" {
		t.Errorf("expected sub-1, got %s", sub.ID)
	}
}

func TestResolve_ViaLedgerEntry(t *testing.T) {
	ctx := context.Background()
	d := newUCDeps()
	d.seedCheckout(ctx, "tenant-1", "sub-1", "ws_CO_001", 299_900)

	entry := &model.BillingLedgerEntry{
		ID:             ulid.Make().String(),
		SubscriptionID: "sub-1",
		TenantID:       "tenant-1",
		CorrelationID:  "ledger-corr-9",
		ApprovalStatus: model.ApprovalStatusPending,
		CreatedAt:      time.Now(),
	}
	_ = d.ledger.Save(ctx, repository.NoTX, entry)

	sub, err := d.resolver.Resolve(ctx, repository.NoTX, model.PaymentSignal{CorrelationID: "ledger-corr-9"})
	if err != nil {
		t.Fatalf("expected a match, got: %v", err)
	}
	if sub.ID != "sub-1" {
		t.Errorf("expected sub-1, got %s", sub.ID)
	}
}

func TestResolve_ViaPaymentReference(t *testing.T) {
	ctx := context.Background()
	d := newUCDeps()
	d.seedCheckout(ctx, "tenant-1", "sub-1", "ws_CO_001", 299_900)

	// No ledger entry: falls through to the payment reference scan, first on
	// the correlation id, then on the receipt.
	sub, err := d.resolver.Resolve(ctx, repository.NoTX, model.PaymentSignal{CorrelationID: "ws_CO_001"})
	if err != nil {
		t.Fatalf("correlation id: expected a match, got: %v", err)
	}
	if sub.ID != "sub-1" {
		t.Errorf("expected sub-1, got %s", sub.ID)
	}

	sub, err = d.resolver.Resolve(ctx, repository.NoTX, model.PaymentSignal{Receipt: "ws_CO_001"})
	if err != nil {
		t.Fatalf("receipt: expected a match, got: %v", err)
	}
	if sub.ID != "sub-1" {
		t.Errorf("expected sub-1, got %s", sub.ID)
	}
}

func TestResolve_HeuristicMatchesTenantAndAmount(t *testing.T) {
	ctx := context.Background()
	d := newUCDeps()
	d.seedCheckout(ctx, "tenant-1", "sub-1", "ws_CO_001", 299_900)

	sub, err := d.resolver.Resolve(ctx, repository.NoTX, model.PaymentSignal{
		TenantID: "tenant-1",
		Amount:   299_900,
	})
	if err != nil {
		t.Fatalf("expected a heuristic match, got: %v", err)
	}
	if sub.ID != "sub-1" {
		t.Errorf("expected sub-1, got %s", sub.ID)
	}
}

func TestResolve_HeuristicRespectsWindow(t *testing.T) {
	ctx := context.Background()
	d := newUCDeps()
	d.seedCheckout(ctx, "tenant-1", "sub-1", "ws_CO_001", 299_900)

	// Age the subscription past the heuristic window.
	sub, _ := d.subs.FindByID(ctx, repository.NoTX, "sub-1")
	sub.CreatedAt = time.Now().Add(-3 * time.Hour)
	_ = d.subs.Save(ctx, repository.NoTX, sub)

	resolver := usecase.NewCorrelationResolver(d.subs, d.ledger, time.Hour, newTestLogger())
	_, err := resolver.Resolve(ctx, repository.NoTX, model.PaymentSignal{
		TenantID: "tenant-1",
		Amount:   299_900,
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound outside the window, got: %v", err)
	}
}

func TestResolve_HeuristicIgnoresAmountMismatch(t *testing.T) {
	ctx := context.Background()
	d := newUCDeps()
	d.seedCheckout(ctx, "tenant-1", "sub-1", "ws_CO_001", 299_900)

	_, err := d.resolver.Resolve(ctx, repository.NoTX, model.PaymentSignal{
		TenantID: "tenant-1",
		Amount:   100, // wrong amount
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on amount mismatch, got: %v", err)
	}
}

func TestResolve_NothingMatches(t *testing.T) {
	ctx := context.Background()
	d := newUCDeps()

	_, err := d.resolver.Resolve(ctx, repository.NoTX, model.PaymentSignal{
		CorrelationID: "no-such",
		Receipt:       "no-such",
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}
