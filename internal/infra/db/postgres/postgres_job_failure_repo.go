package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"retail-pos-billing/internal/domain"
	"retail-pos-billing/internal/domain/model"
	"retail-pos-billing/internal/domain/ports/repository"
)

// Ensure jobFailureRepo implements repository.JobFailureRepository
var _ repository.JobFailureRepository = (*jobFailureRepo)(nil)

type jobFailureRepo struct {
	pool *pgxpool.Pool
}

func NewJobFailureRepo(pool *pgxpool.Pool) *jobFailureRepo {
	return &jobFailureRepo{pool: pool}
}

func (r *jobFailureRepo) Save(ctx context.Context, tx repository.Tx, f *model.JobFailure) error {
	const q = `
INSERT INTO job_failures (id, job, entity_id, attempts, last_error, created_at)
VALUES ($1,$2,$3,$4,$5,$6);`

	_, err := execSQL(ctx, r.pool, tx, q, f.ID, f.Job, f.EntityID, f.Attempts, f.LastError, f.CreatedAt)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *jobFailureRepo) ListRecent(ctx context.Context, tx repository.Tx, limit int) ([]*model.JobFailure, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, job, entity_id, attempts, last_error, created_at
  FROM job_failures
 ORDER BY created_at DESC
 LIMIT $1;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.JobFailure
	for rows.Next() {
		f := &model.JobFailure{}
		if err := rows.Scan(&f.ID, &f.Job, &f.EntityID, &f.Attempts, &f.LastError, &f.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
