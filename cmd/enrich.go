package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flori92/FloDrama-sub001/internal/domain"
	"github.com/flori92/FloDrama-sub001/internal/enrich"
	"github.com/flori92/FloDrama-sub001/internal/logger"
	"github.com/flori92/FloDrama-sub001/internal/search"
	"github.com/flori92/FloDrama-sub001/internal/store"
)

func enrichCommand() *cobra.Command {
	var (
		source   string
		category string
	)

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Run one enrichment batch for a source and catalog",
		Long: `Enriches a batch of low-quality or unanalyzed items from one
(source, catalog) group without going through the task queue. Useful
for backfills and for testing NLP connectivity.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if source == "" || category == "" {
				return fmt.Errorf("--source and --category are required")
			}

			a, err := newApp(needs{db: true, search: true})
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			enricher := enrich.NewEnricher(
				store.NewContentRepository(a.db),
				enrich.NewNLPClient(a.cfg.NLP),
				enrich.NewCategorizer(enrich.DefaultCategoryRules()),
				search.NewIndex(a.es, a.cfg.Search.IndexPrefix, a.logger),
				enrich.NewPersonalizationClient(a.cfg.Personal.Endpoint),
				a.cfg.NLP,
				a.metrics,
				a.logger,
			)

			count, err := enricher.EnrichGroup(ctx, source, domain.ContentType(category))
			if err != nil {
				return err
			}
			a.logger.Info("enrichment batch done", logger.Int("enriched", count))
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "source name to enrich")
	cmd.Flags().StringVar(&category, "category", "", "catalog of the source")
	return cmd
}
