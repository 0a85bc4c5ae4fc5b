package repository

import (
	"context"
	"time"

	"retail-pos-billing/internal/domain/model"
)

// BillingLedgerRepository is the port for admin-facing billing snapshots.
type BillingLedgerRepository interface {
	Save(ctx context.Context, tx Tx, e *model.BillingLedgerEntry) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.BillingLedgerEntry, error)
	FindBySubscriptionID(ctx context.Context, tx Tx, subscriptionID string) (*model.BillingLedgerEntry, error)
	// FindByCorrelationOrReceipt supports the correlation resolver's second
	// strategy; either argument may be empty.
	FindByCorrelationOrReceipt(ctx context.Context, tx Tx, correlationID, receipt string) (*model.BillingLedgerEntry, error)
	// SetApproval records the approval workflow outcome.
	SetApproval(ctx context.Context, tx Tx, id string, status model.ApprovalStatus, actor string, reason *string) error
	// SetWindow records the computed plan window once activation settles it.
	SetWindow(ctx context.Context, tx Tx, id string, start, end time.Time, receipt *string) error
	ListByApprovalStatus(ctx context.Context, tx Tx, status model.ApprovalStatus, limit int) ([]*model.BillingLedgerEntry, error)
}
