package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/flori92/FloDrama-sub001/internal/domain"
)

// LogRepository persists crawl run logs. A log row is opened at task start
// and finalized at task end, so a completed run is never missing either
// terminus.
type LogRepository struct {
	db *sqlx.DB
}

// NewLogRepository creates a log repository.
func NewLogRepository(db *sqlx.DB) *LogRepository {
	return &LogRepository{db: db}
}

// Start opens a run log and fills in its ID and start time.
func (r *LogRepository) Start(ctx context.Context, log *domain.ScrapingLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	log.StartedAt = time.Now().UTC()

	query := `
		INSERT INTO scraping_logs (id, source, target_category, started_at, status)
		VALUES ($1, $2, $3, $4, 'running')`
	if _, err := r.db.ExecContext(ctx, query,
		log.ID, log.Source, log.TargetCategory, log.StartedAt); err != nil {
		return fmt.Errorf("start scraping log: %w", err)
	}
	return nil
}

// Finish finalizes a run log with its counts and termination status.
func (r *LogRepository) Finish(ctx context.Context, log *domain.ScrapingLog) error {
	now := time.Now().UTC()
	log.CompletedAt = &now
	log.DurationSecs = now.Sub(log.StartedAt).Seconds()

	query := `
		UPDATE scraping_logs SET
			completed_at = $2, success = $3, status = $4, items_count = $5,
			errors_count = $6, error_message = $7, duration_seconds = $8
		WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query,
		log.ID, *log.CompletedAt, log.Success, log.Status, log.ItemsCount,
		log.ErrorsCount, log.ErrorMessage, log.DurationSecs)
	if err != nil {
		return fmt.Errorf("finish scraping log %s: %w", log.ID, err)
	}
	return expectOneRow(result)
}

// SourceCount aggregates successful run output per source and category.
type SourceCount struct {
	Source   string `db:"source"`
	Category string `db:"target_category"`
	Items    int    `db:"items"`
	Runs     int    `db:"runs"`
}

// SourceCounts sums successful items per (source, category) since the
// cutoff, for quota verification.
func (r *LogRepository) SourceCounts(ctx context.Context, since time.Time) ([]SourceCount, error) {
	query := `
		SELECT source, target_category,
		       COALESCE(SUM(items_count), 0) AS items,
		       COUNT(*) AS runs
		FROM scraping_logs
		WHERE started_at >= $1 AND completed_at IS NOT NULL
		GROUP BY source, target_category`

	var counts []SourceCount
	if err := r.db.SelectContext(ctx, &counts, query, since); err != nil {
		return nil, fmt.Errorf("source counts: %w", err)
	}
	return counts, nil
}
