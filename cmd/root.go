// Package cmd implements the flodrama-pipeline command-line interface.
package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "flodrama-pipeline",
	Short: "Media metadata aggregation pipeline",
	Long: `flodrama-pipeline aggregates drama, anime, film and bollywood
metadata from configured streaming sources: scheduling crawls, scraping
detail pages, deduplicating across sources and enriching items with
categories, sentiment and quality scores.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yml",
		"path to the configuration file")

	rootCmd.AddCommand(schedulerCommand())
	rootCmd.AddCommand(runnerCommand())
	rootCmd.AddCommand(dedupeCommand())
	rootCmd.AddCommand(enrichCommand())
	rootCmd.AddCommand(verifyCommand())
}
