package model

import (
	"time"

	"retail-pos-billing/internal/domain"

	"github.com/google/uuid"
)

// Tenant is a business on the platform. PlanID, PlanExpiresAt and
// EnabledFeatures are a denormalized read-path cache rebuilt from the
// subscription and plan tables; only the activation engine writes them.
type Tenant struct {
	ID              string
	Name            string
	Phone           string // billing contact MSISDN
	PlanID          *string
	PlanExpiresAt   *time.Time
	EnabledFeatures []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func NewTenant(id, name, phone string) (*Tenant, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if name == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Tenant{ID: id, Name: name, Phone: phone, CreatedAt: now, UpdatedAt: now}, nil
}

func (t *Tenant) IsZero() bool { return t == nil || t.ID == "" }

// AssignPlan switches the cached plan projection.
func (t *Tenant) AssignPlan(plan *Plan, expiresAt time.Time) {
	t.PlanID = &plan.ID
	t.PlanExpiresAt = &expiresAt
	t.EnabledFeatures = append([]string(nil), plan.Features...)
	t.UpdatedAt = time.Now()
}
