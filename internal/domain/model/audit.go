package model

import "time"

// Domain event names emitted by the activation engine.
const (
	EventSubscriptionActivated = "subscription.activated"
	EventSubscriptionScheduled = "subscription.scheduled"
	EventSubscriptionRejected  = "subscription.rejected"
	EventSubscriptionExpired   = "subscription.expired"
	EventPaymentFailed         = "payment.failed"
)

// AuditEvent is one append-only audit-log row. Writes are best-effort:
// a failed append is logged, never propagated.
type AuditEvent struct {
	ID          string // ULID
	Event       string
	Description string
	Actor       string // "system" for machine-driven transitions
	TenantID    string
	EntityID    string // subscription / transaction / ledger entry id
	Metadata    map[string]interface{}
	CreatedAt   time.Time
}
