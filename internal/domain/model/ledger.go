package model

import "time"

type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// BillingLedgerEntry is the admin-facing snapshot of one subscription-payment
// attempt. Exactly one entry is created when a subscription first enters a
// pending state, and it outlives later mutation or deletion of the
// subscription so the audit trail stays intact.
type BillingLedgerEntry struct {
	ID             string // ULID, sortable by creation time
	SubscriptionID string
	TenantID       string
	TenantName     string // snapshot
	PlanName       string // snapshot
	BillingCycle   string
	Amount         int64
	Currency       string
	CorrelationID  string
	Receipt        *string
	PlanStartDate  *time.Time
	PlanEndDate    *time.Time

	ApprovalStatus  ApprovalStatus
	ApprovedBy      *string
	RejectionReason *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
