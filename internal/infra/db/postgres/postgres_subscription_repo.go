package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"retail-pos-billing/internal/domain"
	"retail-pos-billing/internal/domain/model"
	"retail-pos-billing/internal/domain/ports/repository"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

const subscriptionCols = `id, tenant_id, plan_id, plan_name, amount, currency, billing_cycle, status, is_active, is_verified, starts_at, ends_at, payment_reference, verified_at, verified_by, payment_trail, created_at, updated_at`

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (
  id, tenant_id, plan_id, plan_name, amount, currency, billing_cycle, status, is_active, is_verified, starts_at, ends_at, payment_reference, verified_at, verified_by, payment_trail, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
ON CONFLICT (id) DO UPDATE SET
  plan_id=$3, plan_name=$4, amount=$5, currency=$6, billing_cycle=$7, status=$8, is_active=$9, is_verified=$10, starts_at=$11, ends_at=$12, payment_reference=$13, verified_at=$14, verified_by=$15, payment_trail=$16, updated_at=$18;`

	trail, err := json.Marshal(s.PaymentTrail)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	_, err = execSQL(ctx, r.pool, tx, q, s.ID, s.TenantID, s.PlanID, s.PlanName, s.Amount, s.Currency, s.BillingCycle, s.Status, s.IsActive, s.IsVerified, s.StartsAt, s.EndsAt, s.PaymentReference, s.VerifiedAt, s.VerifiedBy, trail, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionCols + ` FROM subscriptions WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	return r.queryOne(ctx, tx, q, id)
}

func (r *subscriptionRepo) FindByPaymentReference(ctx context.Context, tx repository.Tx, ref string) (*model.Subscription, error) {
	const q = `SELECT ` + subscriptionCols + ` FROM subscriptions WHERE payment_reference=$1 ORDER BY created_at DESC LIMIT 1;`
	return r.queryOne(ctx, tx, q, ref)
}

func (r *subscriptionRepo) FindActiveByTenant(ctx context.Context, tx repository.Tx, tenantID string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionCols + ` FROM subscriptions WHERE tenant_id=$1 AND status='active'`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += " ORDER BY created_at DESC LIMIT 1;"
	return r.queryOne(ctx, tx, q, tenantID)
}

func (r *subscriptionRepo) FindSettleableByTenant(ctx context.Context, tx repository.Tx, tenantID string) ([]*model.Subscription, error) {
	const q = `
SELECT ` + subscriptionCols + `
  FROM subscriptions
 WHERE tenant_id=$1 AND status IN ('initiated','pending','pending_verification')
 ORDER BY created_at DESC;`
	return r.queryMany(ctx, tx, q, tenantID)
}

func (r *subscriptionRepo) ExpireOtherSettleable(ctx context.Context, tx repository.Tx, tenantID, keepID string) (int, error) {
	const q = `
UPDATE subscriptions
   SET status='expired', is_active=FALSE, updated_at=NOW()
 WHERE tenant_id=$1 AND id<>$2 AND status IN ('initiated','pending','pending_verification');`
	cmd, err := execSQL(ctx, r.pool, tx, q, tenantID, keepID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return 0, err
		}
		return 0, domain.ErrOperationFailed
	}
	return int(cmd.RowsAffected()), nil
}

func (r *subscriptionRepo) ListActiveLapsed(ctx context.Context, tx repository.Tx, asOf time.Time, limit int) ([]*model.Subscription, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT ` + subscriptionCols + `
  FROM subscriptions
 WHERE status='active' AND ends_at IS NOT NULL AND ends_at <= $1
 ORDER BY ends_at ASC
 LIMIT $2;`
	return r.queryMany(ctx, tx, q, asOf, limit)
}

func (r *subscriptionRepo) ListScheduledDue(ctx context.Context, tx repository.Tx, asOf time.Time, limit int) ([]*model.Subscription, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT ` + subscriptionCols + `
  FROM subscriptions
 WHERE status='scheduled' AND starts_at IS NOT NULL AND starts_at <= $1
 ORDER BY starts_at ASC
 LIMIT $2;`
	return r.queryMany(ctx, tx, q, asOf, limit)
}

func (r *subscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM subscriptions GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	counts := make(map[model.SubscriptionStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		counts[model.SubscriptionStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return counts, nil
}

func (r *subscriptionRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...any) (*model.Subscription, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	s, err := scanSubscription(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}

func (r *subscriptionRepo) queryMany(ctx context.Context, tx repository.Tx, sql string, args ...any) ([]*model.Subscription, error) {
	rows, err := queryRows(ctx, r.pool, tx, sql, args...)
	if err != nil {
		switch err {
		case pgx.ErrNoRows:
			return nil, domain.ErrNotFound
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	s := &model.Subscription{}
	var status string
	var trail []byte
	if err := row.Scan(&s.ID, &s.TenantID, &s.PlanID, &s.PlanName, &s.Amount, &s.Currency, &s.BillingCycle, &status, &s.IsActive, &s.IsVerified, &s.StartsAt, &s.EndsAt, &s.PaymentReference, &s.VerifiedAt, &s.VerifiedBy, &trail, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Status = model.SubscriptionStatus(status)
	if len(trail) > 0 {
		_ = json.Unmarshal(trail, &s.PaymentTrail)
	}
	return s, nil
}
