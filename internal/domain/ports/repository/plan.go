package repository

import (
	"context"

	"retail-pos-billing/internal/domain/model"
)

// PlanRepository is the port for the plan catalog (read-mostly).
type PlanRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Plan) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Plan, error)
	FindByName(ctx context.Context, tx Tx, name string) (*model.Plan, error)
	ListActive(ctx context.Context, tx Tx) ([]*model.Plan, error)
}
