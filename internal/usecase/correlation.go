// File: internal/usecase/correlation.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"retail-pos-billing/internal/domain"
	"retail-pos-billing/internal/domain/model"
	"retail-pos-billing/internal/domain/ports/repository"
)

// CorrelationResolver finds the one subscription a payment signal belongs to.
// Initiation and completion records are created by independent code paths that
// race, so a miss is expected and retryable, never fatal.
type CorrelationResolver struct {
	subs   repository.SubscriptionRepository
	ledger repository.BillingLedgerRepository
	// heuristicWindow bounds the tenant+amount fallback: only subscriptions
	// initiated within this window of the signal are candidates. Unbounded
	// matching misattributes payments under concurrent initiations.
	heuristicWindow time.Duration
	log             *zerolog.Logger
}

func NewCorrelationResolver(subs repository.SubscriptionRepository, ledger repository.BillingLedgerRepository, heuristicWindow time.Duration, logger *zerolog.Logger) *CorrelationResolver {
	if heuristicWindow <= 0 {
		heuristicWindow = time.Hour
	}
	l := logger.With().Str("component", "CorrelationResolver").Logger()
	return &CorrelationResolver{subs: subs, ledger: ledger, heuristicWindow: heuristicWindow, log: &l}
}

// Resolve tries each strategy in order; the first match wins. Returns
// domain.ErrNotFound when nothing matches.
func (r *CorrelationResolver) Resolve(ctx context.Context, tx repository.Tx, hint model.PaymentSignal) (*model.Subscription, error) {
	// 1. Direct subscription id.
	if hint.SubscriptionID != "" {
		s, err := r.subs.FindByID(ctx, tx, hint.SubscriptionID)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	// 2. Ledger entry carrying the correlation id or receipt.
	if hint.CorrelationID != "" || hint.Receipt != "" {
		entry, err := r.ledger.FindByCorrelationOrReceipt(ctx, tx, hint.CorrelationID, hint.Receipt)
		if err == nil {
			s, err := r.subs.FindByID(ctx, tx, entry.SubscriptionID)
			if err == nil {
				return s, nil
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}
			// Entry outlives its subscription; fall through.
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	// 3. Subscription whose stored proof-of-payment matches.
	for _, ref := range []string{hint.CorrelationID, hint.Receipt} {
		if ref == "" {
			continue
		}
		s, err := r.subs.FindByPaymentReference(ctx, tx, ref)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	// 4. Heuristic fallback: newest settleable subscription for the tenant
	// with a matching amount, initiated recently enough to be plausible.
	if hint.TenantID != "" && hint.Amount > 0 {
		candidates, err := r.subs.FindSettleableByTenant(ctx, tx, hint.TenantID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		cutoff := time.Now().Add(-r.heuristicWindow)
		for _, s := range candidates {
			if s.Amount != hint.Amount {
				continue
			}
			if s.CreatedAt.Before(cutoff) {
				r.log.Debug().Str("subscription_id", s.ID).Msg("heuristic candidate outside window, skipped")
				continue
			}
			r.log.Info().
				Str("subscription_id", s.ID).
				Str("tenant_id", hint.TenantID).
				Int64("amount", hint.Amount).
				Msg("resolved by tenant+amount heuristic")
			return s, nil
		}
	}

	return nil, domain.ErrNotFound
}
