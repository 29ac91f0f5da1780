package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/use-agent/shelfscan/config"
)

const version = "0.1.0"

func newRootCommand() *cobra.Command {
	cfg := config.Load()

	var logLevel, logFormat string
	root := &cobra.Command{
		Use:           "shelfscan",
		Short:         "Extract product listings from e-commerce search pages",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Log.Level = logLevel
			cfg.Log.Format = logFormat
			initLogger(cfg.Log)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", cfg.Log.Level, "debug, info, warn or error")
	root.PersistentFlags().StringVar(&logFormat, "log-format", cfg.Log.Format, "json or text")

	root.AddCommand(
		newScrapeCommand(cfg),
		newServeCommand(cfg),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "shelfscan %s\n", version)
			},
		},
	)
	return root
}

// initLogger installs the process-wide slog handler. Logs go to stderr so
// they never mix with command output.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
