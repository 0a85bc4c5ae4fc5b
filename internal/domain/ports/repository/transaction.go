package repository

import (
	"context"
	"time"

	"retail-pos-billing/internal/domain/model"
)

// GatewayTransactionRepository is the port for the canonical gateway ledger.
type GatewayTransactionRepository interface {
	Save(ctx context.Context, tx Tx, t *model.GatewayTransaction) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.GatewayTransaction, error)
	FindByCorrelationID(ctx context.Context, tx Tx, correlationID string) (*model.GatewayTransaction, error)
	FindByReceipt(ctx context.Context, tx Tx, receipt string) (*model.GatewayTransaction, error)
	// LinkSubscription sets subscription_id once correlation succeeds.
	LinkSubscription(ctx context.Context, tx Tx, id, subscriptionID string) error
	// MergeMetadata enriches metadata without touching result fields.
	MergeMetadata(ctx context.Context, tx Tx, id string, meta map[string]interface{}) error
	// ListPendingOlderThan feeds the status-poll job.
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.GatewayTransaction, error)
	// ListSucceededUnlinked feeds the reconciliation sweep: succeeded
	// transactions that never got correlated to a subscription.
	ListSucceededUnlinked(ctx context.Context, tx Tx, limit int) ([]*model.GatewayTransaction, error)
}
