package runner

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flori92/FloDrama-sub001/internal/logger"
	"github.com/flori92/FloDrama-sub001/internal/metrics"
	"github.com/flori92/FloDrama-sub001/internal/queue"
)

type emptyQueue struct{}

func (emptyQueue) Dequeue(_ context.Context) (*queue.Delivery, error) { return nil, queue.ErrEmpty }
func (emptyQueue) Ack(_ context.Context, _ *queue.Delivery) error     { return nil }
func (emptyQueue) Fail(_ context.Context, _ *queue.Delivery) error    { return nil }

func TestConsumerStopsOnContextCancel(t *testing.T) {
	c := NewConsumer(emptyQueue{}, nil, nil, time.Millisecond,
		metrics.New(prometheus.NewRegistry()), logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop after cancellation")
	}
}

func TestExecuteRejectsUnknownTaskKind(t *testing.T) {
	c := NewConsumer(emptyQueue{}, nil, nil, time.Millisecond,
		metrics.New(prometheus.NewRegistry()), logger.NewNop())

	task := crawlTask()
	task.Kind = "mystery"
	err := c.execute(context.Background(), task)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown task kind")
}
