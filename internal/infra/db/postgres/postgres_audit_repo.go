package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4/pgxpool"

	"retail-pos-billing/internal/domain"
	"retail-pos-billing/internal/domain/model"
	"retail-pos-billing/internal/domain/ports/repository"
)

// Ensure auditRepo implements repository.AuditRepository
var _ repository.AuditRepository = (*auditRepo)(nil)

type auditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *auditRepo {
	return &auditRepo{pool: pool}
}

func (r *auditRepo) Append(ctx context.Context, tx repository.Tx, e *model.AuditEvent) error {
	const q = `
INSERT INTO audit_events (id, event, description, actor, tenant_id, entity_id, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`

	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	_, err = execSQL(ctx, r.pool, tx, q, e.ID, e.Event, e.Description, e.Actor, e.TenantID, e.EntityID, meta, e.CreatedAt)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *auditRepo) ListByEntity(ctx context.Context, tx repository.Tx, entityID string, limit int) ([]*model.AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, event, description, actor, tenant_id, entity_id, metadata, created_at
  FROM audit_events
 WHERE entity_id=$1
 ORDER BY created_at DESC
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, entityID, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.AuditEvent
	for rows.Next() {
		e := &model.AuditEvent{}
		var meta []byte
		if err := rows.Scan(&e.ID, &e.Event, &e.Description, &e.Actor, &e.TenantID, &e.EntityID, &meta, &e.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &e.Metadata)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
