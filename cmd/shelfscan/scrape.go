package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/shelfscan/config"
	"github.com/use-agent/shelfscan/exporter"
	"github.com/use-agent/shelfscan/models"
	"github.com/use-agent/shelfscan/runner"
)

func newScrapeCommand(cfg *config.Config) *cobra.Command {
	var (
		target   string
		strategy string
		output   string
		backend  string
		layout   string
		headless bool
		stealth  bool
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape one search results page and write its listings as CSV",
		Example: `  shelfscan scrape --url "https://www.amazon.com/s?k=wireless+mouse"
  shelfscan scrape --url "$URL" --strategy dynamic --headless=false --output out/mouse.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := models.ParseStrategy(strategy)
			if err != nil {
				return err
			}
			cfg.Browser.Headless = headless
			cfg.Extract.Backend = backend
			cfg.Extract.LayoutFile = layout

			svc, err := buildServices(cfg, s != models.StrategyStatic)
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runScrape(ctx, cmd, svc.runner, target, s, output, runner.ScrapeOptions{
				Timeout: timeout,
				Stealth: stealth,
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&target, "url", "", "search results page to scrape")
	f.StringVar(&strategy, "strategy", cfg.Engine.DefaultStrategy, "static, dynamic or auto")
	f.StringVarP(&output, "output", "o", cfg.Output.Path, "CSV output path")
	f.StringVar(&backend, "backend", cfg.Extract.Backend, "query backend: css or xpath")
	f.StringVar(&layout, "layout", cfg.Extract.LayoutFile, "YAML layout file replacing the built-in one")
	f.BoolVar(&headless, "headless", cfg.Browser.Headless, "run the browser headless")
	f.BoolVar(&stealth, "stealth", false, "mask browser automation signals")
	f.DurationVar(&timeout, "timeout", cfg.Scraper.DefaultTimeout, "page acquisition timeout")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func runScrape(ctx context.Context, cmd *cobra.Command, rn *runner.Runner, target string, s models.Strategy, output string, opts runner.ScrapeOptions) error {
	res, err := rn.Scrape(ctx, target, s, opts)
	if err != nil {
		slog.Error("scrape failed", "url", target, "strategy", s, "error", err)
		return err
	}

	if err := exporter.WriteFile(output, res.Summary.Records); err != nil {
		slog.Error("export failed", "path", output, "error", err)
		return err
	}

	sum := res.Summary
	slog.Info("scrape complete",
		"url", target,
		"engine", res.Engine,
		"output", output,
		"records", len(sum.Records),
		"fetch", res.FetchDuration,
		"extract", res.ExtractDuration,
	)
	fmt.Fprintf(cmd.OutOrStdout(), "%d records written to %s (total %d: %d ok, %d partial, %d failed, %d duplicates)\n",
		len(sum.Records), output, sum.Total, sum.Successes, sum.Partial, sum.Failures, sum.Duplicates)
	return nil
}
