package repository

import (
	"context"

	"retail-pos-billing/internal/domain/model"
)

// TenantRepository is the port for business aggregates.
type TenantRepository interface {
	Save(ctx context.Context, tx Tx, t *model.Tenant) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Tenant, error)
	// UpdatePlanCache rewrites only the denormalized plan projection
	// (plan id, cached expiry, enabled feature keys).
	UpdatePlanCache(ctx context.Context, tx Tx, t *model.Tenant) error
}
