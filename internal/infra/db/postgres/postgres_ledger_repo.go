package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"retail-pos-billing/internal/domain"
	"retail-pos-billing/internal/domain/model"
	"retail-pos-billing/internal/domain/ports/repository"
)

// Ensure billingLedgerRepo implements repository.BillingLedgerRepository
var _ repository.BillingLedgerRepository = (*billingLedgerRepo)(nil)

const ledgerCols = `id, subscription_id, tenant_id, tenant_name, plan_name, billing_cycle, amount, currency, correlation_id, receipt, plan_start_date, plan_end_date, approval_status, approved_by, rejection_reason, created_at, updated_at`

type billingLedgerRepo struct {
	pool *pgxpool.Pool
}

func NewBillingLedgerRepo(pool *pgxpool.Pool) *billingLedgerRepo {
	return &billingLedgerRepo{pool: pool}
}

func (r *billingLedgerRepo) Save(ctx context.Context, tx repository.Tx, e *model.BillingLedgerEntry) error {
	const q = `
INSERT INTO billing_ledger (
  id, subscription_id, tenant_id, tenant_name, plan_name, billing_cycle, amount, currency, correlation_id, receipt, plan_start_date, plan_end_date, approval_status, approved_by, rejection_reason, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
ON CONFLICT (id) DO UPDATE SET
  receipt=$10, plan_start_date=$11, plan_end_date=$12, approval_status=$13, approved_by=$14, rejection_reason=$15, updated_at=$17;`

	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.SubscriptionID, e.TenantID, e.TenantName, e.PlanName, e.BillingCycle, e.Amount, e.Currency, e.CorrelationID, e.Receipt, e.PlanStartDate, e.PlanEndDate, e.ApprovalStatus, e.ApprovedBy, e.RejectionReason, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *billingLedgerRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.BillingLedgerEntry, error) {
	q := `SELECT ` + ledgerCols + ` FROM billing_ledger WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	return r.queryOne(ctx, tx, q, id)
}

func (r *billingLedgerRepo) FindBySubscriptionID(ctx context.Context, tx repository.Tx, subscriptionID string) (*model.BillingLedgerEntry, error) {
	const q = `SELECT ` + ledgerCols + ` FROM billing_ledger WHERE subscription_id=$1 ORDER BY created_at DESC LIMIT 1;`
	return r.queryOne(ctx, tx, q, subscriptionID)
}

func (r *billingLedgerRepo) FindByCorrelationOrReceipt(ctx context.Context, tx repository.Tx, correlationID, receipt string) (*model.BillingLedgerEntry, error) {
	if correlationID == "" && receipt == "" {
		return nil, domain.ErrNotFound
	}
	const q = `
SELECT ` + ledgerCols + `
  FROM billing_ledger
 WHERE ($1 <> '' AND correlation_id=$1) OR ($2 <> '' AND receipt=$2)
 ORDER BY created_at DESC
 LIMIT 1;`
	return r.queryOne(ctx, tx, q, correlationID, receipt)
}

func (r *billingLedgerRepo) SetApproval(ctx context.Context, tx repository.Tx, id string, status model.ApprovalStatus, actor string, reason *string) error {
	const q = `
UPDATE billing_ledger
   SET approval_status=$2, approved_by=$3, rejection_reason=$4, updated_at=NOW()
 WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, status, actor, reason)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *billingLedgerRepo) SetWindow(ctx context.Context, tx repository.Tx, id string, start, end time.Time, receipt *string) error {
	const q = `
UPDATE billing_ledger
   SET plan_start_date=$2, plan_end_date=$3, receipt=COALESCE($4, receipt), updated_at=NOW()
 WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, start, end, receipt)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *billingLedgerRepo) ListByApprovalStatus(ctx context.Context, tx repository.Tx, status model.ApprovalStatus, limit int) ([]*model.BillingLedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT ` + ledgerCols + `
  FROM billing_ledger
 WHERE approval_status=$1
 ORDER BY created_at DESC
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, status, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.BillingLedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *billingLedgerRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...any) (*model.BillingLedgerEntry, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	e, err := scanLedgerEntry(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return e, nil
}

func scanLedgerEntry(row pgx.Row) (*model.BillingLedgerEntry, error) {
	e := &model.BillingLedgerEntry{}
	var status string
	if err := row.Scan(&e.ID, &e.SubscriptionID, &e.TenantID, &e.TenantName, &e.PlanName, &e.BillingCycle, &e.Amount, &e.Currency, &e.CorrelationID, &e.Receipt, &e.PlanStartDate, &e.PlanEndDate, &status, &e.ApprovedBy, &e.RejectionReason, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.ApprovalStatus = model.ApprovalStatus(status)
	return e, nil
}
