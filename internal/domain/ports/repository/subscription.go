package repository

import (
	"context"
	"time"

	"retail-pos-billing/internal/domain/model"
)

// SubscriptionRepository is the port for tenant subscriptions.
type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	FindByPaymentReference(ctx context.Context, tx Tx, ref string) (*model.Subscription, error)
	FindActiveByTenant(ctx context.Context, tx Tx, tenantID string) (*model.Subscription, error)
	// FindSettleableByTenant lists non-terminal subscriptions
	// (initiated/pending/pending_verification) newest first.
	FindSettleableByTenant(ctx context.Context, tx Tx, tenantID string) ([]*model.Subscription, error)
	// ExpireOtherSettleable expires every settleable subscription of the tenant
	// except keepID; returns how many rows changed.
	ExpireOtherSettleable(ctx context.Context, tx Tx, tenantID, keepID string) (int, error)
	// ListActiveLapsed lists active subscriptions whose window has ended.
	ListActiveLapsed(ctx context.Context, tx Tx, asOf time.Time, limit int) ([]*model.Subscription, error)
	// ListScheduledDue lists scheduled subscriptions whose window has begun.
	ListScheduledDue(ctx context.Context, tx Tx, asOf time.Time, limit int) ([]*model.Subscription, error)
	CountByStatus(ctx context.Context, tx Tx) (map[model.SubscriptionStatus]int, error)
}
