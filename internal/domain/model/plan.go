package model

import (
	"time"

	"retail-pos-billing/internal/domain"
)

// Billing cycles and their fixed window durations.
const (
	BillingCycleMonthly = "monthly"
	BillingCycleYearly  = "yearly"

	MonthlyDurationDays = 30
	YearlyDurationDays  = 365
)

// CycleDuration returns the subscription window for a billing cycle.
// Unknown cycles default to monthly; an empty cycle is treated the same
// so legacy checkouts without the field keep working.
func CycleDuration(cycle string) (time.Duration, error) {
	switch cycle {
	case BillingCycleMonthly, "":
		return MonthlyDurationDays * 24 * time.Hour, nil
	case BillingCycleYearly:
		return YearlyDurationDays * 24 * time.Hour, nil
	}
	return 0, domain.ErrInvalidBillingCycle
}

// Plan represents a purchasable feature tier with a monthly base price.
type Plan struct {
	ID        string
	Name      string
	Price     int64 // minor units, monthly base price
	Currency  string
	Features  []string // feature keys unlocked by the plan
	Active    bool
	CreatedAt time.Time
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// NewPlan validates and constructs a plan.
func NewPlan(id, name string, price int64, currency string, features []string) (*Plan, error) {
	if id == "" || name == "" || price <= 0 || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Plan{
		ID:        id,
		Name:      name,
		Price:     price,
		Currency:  currency,
		Features:  features,
		Active:    true,
		CreatedAt: time.Now(),
	}, nil
}
