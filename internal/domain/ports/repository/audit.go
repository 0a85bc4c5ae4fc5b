package repository

import (
	"context"

	"retail-pos-billing/internal/domain/model"
)

// AuditRepository appends audit-log rows. Callers treat failures as
// non-fatal; the port still returns the error so they can log it.
type AuditRepository interface {
	Append(ctx context.Context, tx Tx, e *model.AuditEvent) error
	ListByEntity(ctx context.Context, tx Tx, entityID string, limit int) ([]*model.AuditEvent, error)
}
