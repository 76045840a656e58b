package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/flori92/FloDrama-sub001/internal/domain"
)

// FailureRepository is the append-only permanent-failure store for tasks
// that exhausted their retry budget.
type FailureRepository struct {
	db *sqlx.DB
}

// NewFailureRepository creates a failure repository.
func NewFailureRepository(db *sqlx.DB) *FailureRepository {
	return &FailureRepository{db: db}
}

// Record appends one failed task. The task payload is stored as JSONB for
// post-mortem inspection; rows are never updated or deleted.
func (r *FailureRepository) Record(ctx context.Context, task *domain.ScrapingTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal failed task: %w", err)
	}

	query := `
		INSERT INTO permanent_failures (id, task, retry_count, failed_at)
		VALUES ($1, $2, $3, $4)`
	if _, err := r.db.ExecContext(ctx, query,
		uuid.NewString(), payload, task.RetryCount, time.Now().UTC()); err != nil {
		return fmt.Errorf("record permanent failure for task %s: %w", task.ID, err)
	}
	return nil
}

// CountSince reports how many tasks failed permanently since the cutoff.
func (r *FailureRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM permanent_failures WHERE failed_at >= $1`
	if err := r.db.GetContext(ctx, &count, query, since); err != nil {
		return 0, fmt.Errorf("count permanent failures: %w", err)
	}
	return count, nil
}
