package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/flori92/FloDrama-sub001/internal/domain"
	"github.com/flori92/FloDrama-sub001/internal/logger"
	"github.com/flori92/FloDrama-sub001/internal/queue"
)

// ReconcileDeadLetters drains the dead-letter channel. Each dead task's
// retry count is incremented; tasks still inside the budget are requeued,
// the rest are written once to the permanent-failure store and dropped.
func (s *Scheduler) ReconcileDeadLetters(ctx context.Context) error {
	var errs []error
	for {
		task, err := s.queue.PopDead(ctx)
		if errors.Is(err, queue.ErrEmpty) {
			break
		}
		if err != nil {
			if domain.IsParseError(err) {
				// Malformed payload already discarded; keep draining.
				continue
			}
			errs = append(errs, err)
			break
		}

		task.RetryCount++
		if task.RetryCount <= domain.MaxTaskRetries {
			if err := s.queue.Enqueue(ctx, task); err != nil {
				errs = append(errs, fmt.Errorf("requeue dead task %s: %w", task.ID, err))
				continue
			}
			s.logger.Info("dead task requeued",
				logger.String("task_id", task.ID),
				logger.Int("retry_count", task.RetryCount))
			continue
		}

		if err := s.failures.Record(ctx, task); err != nil {
			errs = append(errs, fmt.Errorf("record permanent failure %s: %w", task.ID, err))
			continue
		}
		s.metrics.PermanentFails.Inc()
		s.logger.Warn("task failed permanently",
			logger.String("task_id", task.ID),
			logger.String("source", task.Source),
			logger.Int("retry_count", task.RetryCount))
	}
	return errors.Join(errs...)
}
