package model

import (
	"time"

	"retail-pos-billing/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusInitiated           SubscriptionStatus = "initiated"            // checkout created, gateway charge not yet requested
	SubscriptionStatusPending             SubscriptionStatus = "pending"              // awaiting payment result
	SubscriptionStatusPendingVerification SubscriptionStatus = "pending_verification" // needs a human decision
	SubscriptionStatusScheduled           SubscriptionStatus = "scheduled"            // paid and verified; window starts when the current one ends
	SubscriptionStatusActive              SubscriptionStatus = "active"
	SubscriptionStatusExpired             SubscriptionStatus = "expired"
	SubscriptionStatusCancelled           SubscriptionStatus = "cancelled"
	SubscriptionStatusRejected            SubscriptionStatus = "rejected"
)

// ActivationPath records which branch the activation engine took.
const (
	ActivationPathImmediateUpgrade   = "immediate_upgrade"
	ActivationPathScheduledDowngrade = "scheduled_downgrade"
)

// PaymentNote is one entry of a subscription's append-only payment trail.
type PaymentNote struct {
	At    time.Time `json:"at"`
	Actor string    `json:"actor"`
	Note  string    `json:"note"`
}

// Subscription is a tenant's claim to a plan for one billing interval.
type Subscription struct {
	ID       string // UUID
	TenantID string // UUID
	PlanID   string // UUID
	// Snapshot of the plan at checkout time; survives later plan edits.
	PlanName string
	Amount   int64 // minor units
	Currency string

	BillingCycle string // monthly | yearly

	Status     SubscriptionStatus
	IsActive   bool
	IsVerified bool

	StartsAt *time.Time
	EndsAt   *time.Time

	PaymentReference *string // gateway receipt (or correlation id until receipt lands)
	VerifiedAt       *time.Time
	VerifiedBy       *string // actor id; "system" for gateway-driven activations

	PaymentTrail []PaymentNote

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSubscription creates a subscription in its initial pending state.
func NewSubscription(id, tenantID string, plan *Plan, billingCycle string) (*Subscription, error) {
	if id == "" || tenantID == "" || plan == nil {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Subscription{
		ID:           id,
		TenantID:     tenantID,
		PlanID:       plan.ID,
		PlanName:     plan.Name,
		Amount:       plan.Price,
		Currency:     plan.Currency,
		BillingCycle: billingCycle,
		Status:       SubscriptionStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Finalized reports whether a payment signal has already been fully applied.
// A scheduled (deferred downgrade) subscription counts: it is paid and
// verified, only its window is in the future.
func (s *Subscription) Finalized() bool {
	switch s.Status {
	case SubscriptionStatusActive, SubscriptionStatusScheduled:
		return true
	}
	return s.IsVerified
}

// Settleable reports whether the subscription can still accept a payment
// result (non-terminal from the reconciliation engine's point of view).
func (s *Subscription) Settleable() bool {
	switch s.Status {
	case SubscriptionStatusInitiated, SubscriptionStatusPending, SubscriptionStatusPendingVerification:
		return true
	}
	return false
}

// AppendNote appends to the payment trail; the trail is append-only by
// convention, existing entries are never rewritten.
func (s *Subscription) AppendNote(actor, note string) {
	s.PaymentTrail = append(s.PaymentTrail, PaymentNote{At: time.Now(), Actor: actor, Note: note})
}
