package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/octobees/leads-generator/worker/internal/app"
	"github.com/octobees/leads-generator/worker/internal/config"
	"github.com/octobees/leads-generator/worker/internal/crawl"
	"github.com/octobees/leads-generator/worker/internal/logger"
)

type scrapeOptions struct {
	batchID  string
	store    string
	headless bool
}

func newRootCommand() *cobra.Command {
	opts := &scrapeOptions{}

	cmd := &cobra.Command{
		Use:   "scrape <query>",
		Short: "Run one Google Maps search and store the listings",
		Long: `Runs a single search to completion in the foreground: the search page, every
detail page it links to, and ingestion into the configured store. The run
report is printed as JSON.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd, strings.Join(args, " "), opts)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&opts.batchID, "batch-id", "", "batch identifier (generated when empty)")
	cmd.Flags().StringVar(&opts.store, "store", "", "override STORE_DRIVER (postgres, mongo, memory)")
	cmd.Flags().BoolVar(&opts.headless, "headless", true, "run Chrome headless")
	return cmd
}

func runScrape(cmd *cobra.Command, query string, opts *scrapeOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.store != "" {
		cfg.Store.Driver = strings.ToLower(opts.store)
	}
	if cmd.Flags().Changed("headless") {
		cfg.Crawl.Headless = opts.headless
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	worker, err := app.Build(connectCtx, ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer worker.Close()

	report, runErr := worker.Controller.Run(ctx, query, opts.batchID)
	if runErr != nil {
		zl.Error("run failed", zap.String("batch_id", report.BatchID), zap.Error(runErr))
	}
	if err := printReport(cmd, report); err != nil {
		return err
	}
	return runErr
}

func printReport(cmd *cobra.Command, report crawl.Report) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
