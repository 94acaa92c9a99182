// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/solidation/solidation/internal/config"
	"github.com/solidation/solidation/internal/gateway"
	"github.com/solidation/solidation/internal/report"
	"github.com/solidation/solidation/internal/usecase"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Aggregates recent repository activity and prints a Markdown digest",
	Long: `Resolves the configured repositories and organizations, fetches issue and
pull request activity within the recent window, and prints the aggregated
health digest as Markdown to standard output.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		// Get the verbose flag from the root command to set up the logger.
		verbose, _ := cmd.InheritedFlags().GetBool("verbose")
		logger := log.New(io.Discard, "", log.LstdFlags) // Default: discard all logs.
		if verbose {
			logger.SetOutput(os.Stderr) // If verbose, log to standard error.
		}

		// A local .env file may carry GITHUB_TOKEN during development.
		if _, err := os.Stat(".env"); err == nil {
			_ = godotenv.Load(".env")
		}

		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
			os.Exit(1)
		}
		if cfg.Token == "" {
			fmt.Fprintln(os.Stderr, "Error: GITHUB_TOKEN environment variable is not set.")
			os.Exit(1)
		}

		// A fixed seed makes the random issue sample reproducible.
		var rng *rand.Rand
		if cmd.Flags().Changed("seed") {
			seed, _ := cmd.Flags().GetInt64("seed")
			rng = rand.New(rand.NewSource(seed))
		}

		githubGateway, err := gateway.NewGitHubGateway(cfg.Token, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create GitHub gateway: %v\n", err)
			os.Exit(1)
		}

		now := time.Now().UTC()
		since := now.Add(-time.Duration(cfg.RecentDays) * 24 * time.Hour)

		resolver := usecase.NewResolver(githubGateway, logger)
		targets, members, err := resolver.Resolve(ctx, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to resolve targets: %v\n", err)
			os.Exit(1)
		}

		fetcher := usecase.NewFetcher(githubGateway, logger)
		activities := fetcher.FetchAll(ctx, targets, since)

		aggregator := usecase.NewAggregator(logger, rng, nil)
		result := aggregator.Aggregate(cfg, activities, members, now)

		// Print the final Markdown digest to standard output.
		fmt.Print(report.Render(result))
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringP("config", "c", "solidation.yaml", "Read configuration from the given file")
	reportCmd.Flags().Int64("seed", 0, "Seed for the random issue sample (default: system randomness)")
}
