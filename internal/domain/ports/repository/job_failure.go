package repository

import (
	"context"

	"retail-pos-billing/internal/domain/model"
)

// JobFailureRepository records background jobs that exhausted their retries.
type JobFailureRepository interface {
	Save(ctx context.Context, tx Tx, f *model.JobFailure) error
	ListRecent(ctx context.Context, tx Tx, limit int) ([]*model.JobFailure, error)
}
