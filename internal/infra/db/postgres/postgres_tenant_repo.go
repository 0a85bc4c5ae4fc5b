package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"retail-pos-billing/internal/domain"
	"retail-pos-billing/internal/domain/model"
	"retail-pos-billing/internal/domain/ports/repository"
)

// Ensure tenantRepo implements repository.TenantRepository
var _ repository.TenantRepository = (*tenantRepo)(nil)

type tenantRepo struct {
	pool *pgxpool.Pool
}

func NewTenantRepo(pool *pgxpool.Pool) *tenantRepo {
	return &tenantRepo{pool: pool}
}

func (r *tenantRepo) Save(ctx context.Context, tx repository.Tx, t *model.Tenant) error {
	const q = `
INSERT INTO tenants (id, name, phone, plan_id, plan_expires_at, enabled_features, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  name=$2, phone=$3, plan_id=$4, plan_expires_at=$5, enabled_features=$6, updated_at=$8;`

	_, err := execSQL(ctx, r.pool, tx, q, t.ID, t.Name, t.Phone, t.PlanID, t.PlanExpiresAt, t.EnabledFeatures, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *tenantRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Tenant, error) {
	q := `SELECT id, name, phone, plan_id, plan_expires_at, enabled_features, created_at, updated_at FROM tenants WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"

	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	t := &model.Tenant{}
	if err := row.Scan(&t.ID, &t.Name, &t.Phone, &t.PlanID, &t.PlanExpiresAt, &t.EnabledFeatures, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrTenantNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return t, nil
}

func (r *tenantRepo) UpdatePlanCache(ctx context.Context, tx repository.Tx, t *model.Tenant) error {
	const q = `
UPDATE tenants
   SET plan_id=$2, plan_expires_at=$3, enabled_features=$4, updated_at=NOW()
 WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, t.ID, t.PlanID, t.PlanExpiresAt, t.EnabledFeatures)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrTenantNotFound
	}
	return nil
}
