package scheduler

import (
	"context"

	"github.com/flori92/FloDrama-sub001/internal/logger"
)

// CheckBacklog reaps expired leases and samples queue depth, warning when
// the backlog passes the configured threshold.
func (s *Scheduler) CheckBacklog(ctx context.Context) error {
	reaped, err := s.queue.ReapExpired(ctx)
	if err != nil {
		return err
	}
	if reaped > 0 {
		s.metrics.LeaseReaps.Add(float64(reaped))
	}

	visible, inflight, err := s.queue.Depth(ctx)
	if err != nil {
		return err
	}
	backlog := visible + inflight
	s.metrics.QueueBacklog.Set(float64(backlog))

	if backlog > s.backlogWarnSize {
		s.logger.Warn("task backlog above threshold",
			logger.Int64("visible", visible),
			logger.Int64("inflight", inflight),
			logger.Int64("threshold", s.backlogWarnSize))
	}
	return nil
}
