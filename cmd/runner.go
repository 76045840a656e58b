package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flori92/FloDrama-sub001/internal/enrich"
	"github.com/flori92/FloDrama-sub001/internal/queue"
	"github.com/flori92/FloDrama-sub001/internal/runner"
	"github.com/flori92/FloDrama-sub001/internal/scraper"
	"github.com/flori92/FloDrama-sub001/internal/search"
	"github.com/flori92/FloDrama-sub001/internal/store"
)

func runnerCommand() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "runner",
		Short: "Run the task consumer",
		Long: `Consumes tasks from the queue and executes them: scraping and
update tasks run a crawl, enrichment tasks call the NLP service and
recompute scores, popularity tasks refresh popularity. Blocks until
interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(needs{db: true, redis: true, search: true})
			if err != nil {
				return err
			}
			defer a.close()
			a.serveMetrics(metricsAddr)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			contentRepo := store.NewContentRepository(a.db)
			index := search.NewIndex(a.es, a.cfg.Search.IndexPrefix, a.logger)

			httpClient := scraper.NewClient(scraper.ClientConfig{
				Timeout:      a.cfg.Crawl.RequestTimeout,
				MaxRetries:   a.cfg.Crawl.MaxRetries,
				RequestDelay: a.cfg.Crawl.RequestDelay,
			}, a.logger)
			scrapers := scraper.NewRegistry(a.registry, httpClient, a.logger)

			crawler := runner.NewCrawler(
				scrapers,
				contentRepo,
				store.NewLogRepository(a.db),
				index,
				a.cfg.Crawl,
				a.metrics,
				a.logger,
			)
			enricher := enrich.NewEnricher(
				contentRepo,
				enrich.NewNLPClient(a.cfg.NLP),
				enrich.NewCategorizer(enrich.DefaultCategoryRules()),
				index,
				enrich.NewPersonalizationClient(a.cfg.Personal.Endpoint),
				a.cfg.NLP,
				a.metrics,
				a.logger,
			)

			consumer := runner.NewConsumer(
				queue.New(a.redis, a.cfg.Crawl.LeaseTimeout, a.logger),
				crawler,
				enricher,
				a.cfg.Crawl.PollInterval,
				a.metrics,
				a.logger,
			)
			return consumer.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9092",
		"address for the Prometheus metrics endpoint (empty to disable)")
	return cmd
}
