package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flori92/FloDrama-sub001/internal/dedup"
	"github.com/flori92/FloDrama-sub001/internal/domain"
	"github.com/flori92/FloDrama-sub001/internal/logger"
	"github.com/flori92/FloDrama-sub001/internal/store"
)

func dedupeCommand() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Run a cross-source deduplication pass",
		Long: `Compares items across sources within each catalog and merges
near-duplicates, keeping the more complete side of every pair.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(needs{db: true})
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			categories := domain.ContentTypes
			if category != "" {
				categories = []domain.ContentType{domain.ContentType(category)}
			}

			engine := dedup.NewEngine(store.NewContentRepository(a.db), a.metrics, a.logger)
			for _, c := range categories {
				report, err := engine.Run(ctx, c)
				if err != nil {
					return fmt.Errorf("deduplicate %s: %w", c, err)
				}
				a.logger.Info("deduplication report",
					logger.String("category", string(c)),
					logger.Int("compared", report.Compared),
					logger.Int("candidates", len(report.Pairs)),
					logger.Int("merged", report.Merged))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "",
		"restrict the pass to one catalog (drama, anime, film, bollywood)")
	return cmd
}
