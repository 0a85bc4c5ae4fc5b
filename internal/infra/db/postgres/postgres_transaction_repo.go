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

// Ensure gatewayTransactionRepo implements repository.GatewayTransactionRepository
var _ repository.GatewayTransactionRepository = (*gatewayTransactionRepo)(nil)

const transactionCols = `id, tenant_id, subscription_id, correlation_id, receipt, phone, amount, currency, result_code, result_desc, status, orphaned, metadata, raw_payload, created_at, updated_at, completed_at`

type gatewayTransactionRepo struct {
	pool *pgxpool.Pool
}

func NewGatewayTransactionRepo(pool *pgxpool.Pool) *gatewayTransactionRepo {
	return &gatewayTransactionRepo{pool: pool}
}

func (r *gatewayTransactionRepo) Save(ctx context.Context, tx repository.Tx, t *model.GatewayTransaction) error {
	const q = `
INSERT INTO gateway_transactions (
  id, tenant_id, subscription_id, correlation_id, receipt, phone, amount, currency, result_code, result_desc, status, orphaned, metadata, raw_payload, created_at, updated_at, completed_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
ON CONFLICT (id) DO UPDATE SET
  subscription_id=$3, receipt=$5, result_code=$9, result_desc=$10, status=$11, orphaned=$12, metadata=$13, raw_payload=$14, updated_at=$16, completed_at=$17;`

	meta, err := json.Marshal(t.Metadata)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	_, err = execSQL(ctx, r.pool, tx, q, t.ID, t.TenantID, t.SubscriptionID, t.CorrelationID, t.Receipt, t.Phone, t.Amount, t.Currency, t.ResultCode, t.ResultDesc, t.Status, t.Orphaned, meta, t.RawPayload, t.CreatedAt, t.UpdatedAt, t.CompletedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *gatewayTransactionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.GatewayTransaction, error) {
	q := `SELECT ` + transactionCols + ` FROM gateway_transactions WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	return r.queryOne(ctx, tx, q, id)
}

func (r *gatewayTransactionRepo) FindByCorrelationID(ctx context.Context, tx repository.Tx, correlationID string) (*model.GatewayTransaction, error) {
	q := `SELECT ` + transactionCols + ` FROM gateway_transactions WHERE correlation_id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	return r.queryOne(ctx, tx, q, correlationID)
}

func (r *gatewayTransactionRepo) FindByReceipt(ctx context.Context, tx repository.Tx, receipt string) (*model.GatewayTransaction, error) {
	const q = `SELECT ` + transactionCols + ` FROM gateway_transactions WHERE receipt=$1;`
	return r.queryOne(ctx, tx, q, receipt)
}

func (r *gatewayTransactionRepo) LinkSubscription(ctx context.Context, tx repository.Tx, id, subscriptionID string) error {
	const q = `UPDATE gateway_transactions SET subscription_id=$2, orphaned=FALSE, updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, subscriptionID)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *gatewayTransactionRepo) MergeMetadata(ctx context.Context, tx repository.Tx, id string, meta map[string]interface{}) error {
	if len(meta) == 0 {
		return nil
	}
	patch, err := json.Marshal(meta)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	const q = `UPDATE gateway_transactions SET metadata = COALESCE(metadata,'{}'::jsonb) || $2::jsonb, updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, patch)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *gatewayTransactionRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.GatewayTransaction, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT ` + transactionCols + `
  FROM gateway_transactions
 WHERE status='pending' AND created_at <= $1
 ORDER BY created_at ASC
 LIMIT $2;`
	return r.queryMany(ctx, tx, q, olderThan, limit)
}

func (r *gatewayTransactionRepo) ListSucceededUnlinked(ctx context.Context, tx repository.Tx, limit int) ([]*model.GatewayTransaction, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT ` + transactionCols + `
  FROM gateway_transactions
 WHERE status='succeeded' AND subscription_id IS NULL
 ORDER BY created_at ASC
 LIMIT $1;`
	return r.queryMany(ctx, tx, q, limit)
}

func (r *gatewayTransactionRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...any) (*model.GatewayTransaction, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	t, err := scanTransaction(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return t, nil
}

func (r *gatewayTransactionRepo) queryMany(ctx context.Context, tx repository.Tx, sql string, args ...any) ([]*model.GatewayTransaction, error) {
	rows, err := queryRows(ctx, r.pool, tx, sql, args...)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.GatewayTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanTransaction(row pgx.Row) (*model.GatewayTransaction, error) {
	t := &model.GatewayTransaction{}
	var status string
	var meta []byte
	if err := row.Scan(&t.ID, &t.TenantID, &t.SubscriptionID, &t.CorrelationID, &t.Receipt, &t.Phone, &t.Amount, &t.Currency, &t.ResultCode, &t.ResultDesc, &status, &t.Orphaned, &meta, &t.RawPayload, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt); err != nil {
		return nil, err
	}
	t.Status = model.TransactionStatus(status)
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &t.Metadata)
	}
	return t, nil
}
