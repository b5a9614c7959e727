package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/app"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/config"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/logging"
)

var version = "dev"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:     "gccintel",
		Short:   "GCC business intelligence: crawl regional news and generate client reports",
		Version: version,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")

	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(reportCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func crawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Run one crawl cycle across all configured sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, application, cleanup, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			summary, err := application.Crawl(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("crawled %d sources in %s\n",
				summary.Sources, summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))
			fmt.Printf("  created %d, updated %d, unchanged %d, rejected %d\n",
				summary.Created, summary.Updated, summary.Unchanged, summary.Rejected)
			for _, o := range summary.Outcomes {
				if o.Failed() {
					fmt.Printf("  source %s failed (%s): %v\n", o.SourceID, o.Failure, o.Err)
				}
			}
			return nil
		},
	}
}

func reportCmd() *cobra.Command {
	var clientID, cadence string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate a report for one client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, application, cleanup, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			rep, err := application.GenerateReport(ctx, clientID, cadence)
			if err != nil {
				return err
			}

			fmt.Printf("report %s generated for %s (%s): %d articles\n",
				rep.ID, rep.ClientName, rep.Cadence, len(rep.Articles))
			if rep.Partial {
				fmt.Printf("  partial: %s\n", rep.PartialReason)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&clientID, "client", "", "client ID to report on")
	cmd.Flags().StringVar(&cadence, "cadence", "daily", "report cadence (daily, weekly, monthly)")
	cmd.MarkFlagRequired("client")

	return cmd
}

// setup loads config, builds the application and installs signal-driven
// cancellation. The returned cleanup releases both.
func setup(cmd *cobra.Command) (context.Context, *app.Application, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := logging.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		stop()
		return nil, nil, nil, err
	}
	cleanup := func() {
		application.Close()
		stop()
	}
	return ctx, application, cleanup, nil
}
