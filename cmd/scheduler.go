package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flori92/FloDrama-sub001/internal/cache"
	"github.com/flori92/FloDrama-sub001/internal/queue"
	"github.com/flori92/FloDrama-sub001/internal/scheduler"
	"github.com/flori92/FloDrama-sub001/internal/store"
)

func schedulerCommand() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Run the task scheduling loop",
		Long: `Runs the scheduling loop: every cycle it evaluates the new-crawl,
refresh, enrichment and popularity policies, requeues retryable dead
letters and samples queue depth. Blocks until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(needs{db: true, redis: true})
			if err != nil {
				return err
			}
			defer a.close()
			a.serveMetrics(metricsAddr)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sched := scheduler.New(
				a.registry,
				queue.New(a.redis, a.cfg.Crawl.LeaseTimeout, a.logger),
				cache.NewTracker(a.redis, a.logger),
				store.NewContentRepository(a.db),
				store.NewFailureRepository(a.db),
				a.metrics,
				a.cfg,
				a.logger,
			)
			return sched.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9091",
		"address for the Prometheus metrics endpoint (empty to disable)")
	return cmd
}
