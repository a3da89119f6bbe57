package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"newsbot/internal/app"
	"newsbot/internal/config"
	"newsbot/internal/observability/logging"
)

var version = "dev"

type options struct {
	configPath string
	refresh    bool
	offline    bool
	startup    bool
	status     bool
	limit      int
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "headlines",
		Short:         "Print the latest headlines from the configured news sources",
		Long:          "headlines refreshes every enabled source, then prints the most recent articles across all of them.\nSources that cannot be reached are served from the offline cache.",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeadlines(cmd, opts)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file")
	root.Flags().BoolVarP(&opts.refresh, "refresh", "r", false, "force refresh all feeds, ignoring the freshness window")
	root.Flags().BoolVar(&opts.offline, "offline", false, "do not touch the network, print the cache only")
	root.Flags().BoolVarP(&opts.startup, "startup", "s", false, "startup mode: print a brief summary of 10 headlines")
	root.Flags().BoolVar(&opts.status, "status", false, "print one status line per source")
	root.PersistentFlags().IntVarP(&opts.limit, "limit", "n", 20, "number of headlines to show or prefetch")

	root.AddCommand(newReadCmd(opts))
	root.AddCommand(newPrefetchCmd(opts))
	root.AddCommand(newSourcesCmd(opts))
	root.AddCommand(newDiagnoseCmd(opts))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "headlines %s\n", version)
		},
	})
	return root
}

// openApp loads the configuration and wires the engine. Logs go to stderr so
// stdout stays clean for the listing.
func openApp(ctx context.Context, opts *options) (*app.App, error) {
	logger := logging.New(os.Stderr, "text")
	slog.SetDefault(logger)

	cfg, warnings, err := config.Load(opts.configPath)
	for _, w := range warnings {
		logger.Warn("Configuration fallback applied", slog.String("warning", w))
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("no news sources configured, check %s", config.FileName)
	}

	return app.Open(ctx, cfg, logger)
}

func runHeadlines(cmd *cobra.Command, opts *options) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, opts)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if !opts.offline {
		fmt.Fprintln(cmd.ErrOrStderr(), "Fetching news feeds...")
		report, err := a.Refresh(ctx, opts.refresh)
		if err != nil {
			return fmt.Errorf("refresh: %w", err)
		}
		if opts.status {
			writeStatus(cmd.ErrOrStderr(), report, a.Catalog)
		}
	}

	limit := opts.limit
	if opts.startup {
		limit = 10
	}
	articles, err := a.Reader.Headlines(ctx, a.Config.Cache.MaxArticlesPerSource, limit)
	if err != nil {
		return fmt.Errorf("reading cache: %w", err)
	}

	writeHeadlines(cmd.OutOrStdout(), articles, a.Catalog)
	return nil
}
