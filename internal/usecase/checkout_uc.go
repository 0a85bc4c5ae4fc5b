// File: internal/usecase/checkout_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"retail-pos-billing/internal/domain"
	"retail-pos-billing/internal/domain/model"
	"retail-pos-billing/internal/domain/ports/adapter"
	"retail-pos-billing/internal/domain/ports/repository"
)

// CheckoutUseCase starts a subscription payment: it asks the gateway to push
// a charge prompt to the tenant's phone and persists the pending
// subscription, its gateway transaction and the billing ledger entry.
type CheckoutUseCase struct {
	tenants repository.TenantRepository
	plans   repository.PlanRepository
	subs    repository.SubscriptionRepository
	txns    repository.GatewayTransactionRepository
	ledger  repository.BillingLedgerRepository
	gateway adapter.PaymentGateway
	tm      repository.TransactionManager
	log     *zerolog.Logger
}

func NewCheckoutUseCase(
	tenants repository.TenantRepository,
	plans repository.PlanRepository,
	subs repository.SubscriptionRepository,
	txns repository.GatewayTransactionRepository,
	ledger repository.BillingLedgerRepository,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *CheckoutUseCase {
	l := logger.With().Str("component", "CheckoutUseCase").Logger()
	return &CheckoutUseCase{
		tenants: tenants, plans: plans, subs: subs, txns: txns,
		ledger: ledger, gateway: gateway, tm: tm, log: &l,
	}
}

// Initiate requests the charge with the provider first (network I/O outside
// any transaction), then persists all three records atomically.
func (u *CheckoutUseCase) Initiate(ctx context.Context, tenantID, planID, billingCycle, phone string) (*model.Subscription, *model.GatewayTransaction, error) {
	tenant, err := u.tenants.FindByID(ctx, repository.NoTX, tenantID)
	if err != nil {
		return nil, nil, err
	}
	plan, err := u.plans.FindByID(ctx, repository.NoTX, planID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := model.CycleDuration(billingCycle); err != nil {
		return nil, nil, err
	}
	if phone == "" {
		phone = tenant.Phone
	}

	sub, err := model.NewSubscription(uuid.NewString(), tenant.ID, plan, billingCycle)
	if err != nil {
		return nil, nil, err
	}
	amount := chargeAmount(plan.Price, billingCycle)
	sub.Amount = amount

	resp, err := u.gateway.InitiateCharge(ctx, adapter.ChargeRequest{
		Phone:       phone,
		Amount:      amount,
		Currency:    plan.Currency,
		Reference:   sub.ID,
		Description: plan.Name + " subscription",
	})
	if err != nil {
		return nil, nil, err
	}
	sub.PaymentReference = &resp.CorrelationID

	now := time.Now()
	txn := &model.GatewayTransaction{
		ID:             uuid.NewString(),
		TenantID:       tenant.ID,
		SubscriptionID: &sub.ID,
		CorrelationID:  resp.CorrelationID,
		Phone:          phone,
		Amount:         amount,
		Currency:       plan.Currency,
		Status:         model.ResolveStatus(nil),
		Metadata:       map[string]interface{}{"billing_cycle": billingCycle},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.subs.Save(ctx, tx, sub); err != nil {
			return err
		}
		if err := u.txns.Save(ctx, tx, txn); err != nil {
			return err
		}
		// Exactly one ledger entry per subscription; guarded so repeated
		// initiation writes cannot duplicate it.
		if _, err := u.ledger.FindBySubscriptionID(ctx, tx, sub.ID); errors.Is(err, domain.ErrNotFound) {
			entry := newLedgerEntry(tenant, sub)
			entry.CorrelationID = resp.CorrelationID
			return u.ledger.Save(ctx, tx, entry)
		} else if err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	u.log.Info().
		Str("tenant_id", tenant.ID).
		Str("subscription_id", sub.ID).
		Str("correlation_id", resp.CorrelationID).
		Msg("checkout initiated")
	return sub, txn, nil
}

// chargeAmount derives the charge from the plan's monthly base price.
func chargeAmount(monthlyPrice int64, cycle string) int64 {
	if cycle == model.BillingCycleYearly {
		return monthlyPrice * 12
	}
	return monthlyPrice
}
