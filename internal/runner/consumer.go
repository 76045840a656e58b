package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flori92/FloDrama-sub001/internal/domain"
	"github.com/flori92/FloDrama-sub001/internal/enrich"
	"github.com/flori92/FloDrama-sub001/internal/logger"
	"github.com/flori92/FloDrama-sub001/internal/metrics"
	"github.com/flori92/FloDrama-sub001/internal/queue"
)

// TaskQueue is the queue slice the consumer needs.
type TaskQueue interface {
	Dequeue(ctx context.Context) (*queue.Delivery, error)
	Ack(ctx context.Context, d *queue.Delivery) error
	Fail(ctx context.Context, d *queue.Delivery) error
}

// Consumer polls the task queue and dispatches each delivery to the
// matching executor. Failed tasks go back through the dead-letter
// channel; the scheduler's reconciler decides whether they retry.
type Consumer struct {
	queue    TaskQueue
	crawler  *Crawler
	enricher *enrich.Enricher
	poll     time.Duration
	metrics  *metrics.Metrics
	logger   logger.Logger
}

// NewConsumer wires a queue consumer.
func NewConsumer(
	q TaskQueue,
	crawler *Crawler,
	enricher *enrich.Enricher,
	poll time.Duration,
	m *metrics.Metrics,
	log logger.Logger,
) *Consumer {
	return &Consumer{
		queue:    q,
		crawler:  crawler,
		enricher: enricher,
		poll:     poll,
		metrics:  m,
		logger:   log,
	}
}

// Run consumes tasks until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("task consumer started", logger.Duration("poll_interval", c.poll))

	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		d, err := c.queue.Dequeue(ctx)
		switch {
		case errors.Is(err, queue.ErrEmpty):
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
			continue
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("dequeue failed", logger.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
			continue
		}

		c.handle(ctx, d)
	}
}

func (c *Consumer) handle(ctx context.Context, d *queue.Delivery) {
	task := d.Task
	start := time.Now()

	err := c.execute(ctx, task)
	if err != nil {
		c.logger.Error("task failed",
			logger.String("task_id", task.ID),
			logger.String("kind", string(task.Kind)),
			logger.String("source", task.Source),
			logger.Int("retry_count", task.RetryCount),
			logger.Error(err))
		c.metrics.TasksCompleted.WithLabelValues(string(task.Kind), "failed").Inc()
		if failErr := c.queue.Fail(ctx, d); failErr != nil {
			c.logger.Error("dead-letter move failed",
				logger.String("task_id", task.ID),
				logger.Error(failErr))
		}
		return
	}

	c.metrics.TasksCompleted.WithLabelValues(string(task.Kind), "ok").Inc()
	c.logger.Info("task completed",
		logger.String("task_id", task.ID),
		logger.String("kind", string(task.Kind)),
		logger.String("source", task.Source),
		logger.Duration("took", time.Since(start)))
	if err := c.queue.Ack(ctx, d); err != nil {
		c.logger.Error("ack failed",
			logger.String("task_id", task.ID),
			logger.Error(err))
	}
}

func (c *Consumer) execute(ctx context.Context, task *domain.ScrapingTask) error {
	category := domain.ContentType(task.Category)
	switch task.Kind {
	case domain.TaskScraping, domain.TaskUpdate:
		return c.crawler.Run(ctx, task)
	case domain.TaskEnrichment:
		_, err := c.enricher.EnrichGroup(ctx, task.Source, category)
		return err
	case domain.TaskPopularityUpdate:
		_, err := c.enricher.UpdatePopularityGroup(ctx, task.Source, category)
		return err
	default:
		return fmt.Errorf("unknown task kind %q", task.Kind)
	}
}
