package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"newsbot/internal/domain/entity"
	"newsbot/internal/usecase/article"
)

func newReadCmd(opts *options) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "read <source-id> <article-id>",
		Short: "Print the full text of one cached article",
		Long: `Print the readable body of a cached article and mark it read.

The body is extracted from the article page on first use and kept in the cache.
When extraction fails the summary is shown instead.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			body, err := a.Reader.ReadBody(cmd.Context(), args[0], args[1], force)
			if err != nil {
				return err
			}
			writeBody(cmd.OutOrStdout(), body)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "extract again even when a body is cached")
	return cmd
}

func newPrefetchCmd(opts *options) *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "prefetch",
		Short: "Extract and cache the full text of the current headlines",
		Long: `Extract the body of every article in the headline listing so it can be
read later without a network connection. Articles with a stored body are
skipped. Pages that cannot be extracted are reported and left for later.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			articles, err := a.Reader.Headlines(cmd.Context(), a.Config.Cache.MaxArticlesPerSource, opts.limit)
			if err != nil {
				return fmt.Errorf("reading cache: %w", err)
			}
			keys := make([]entity.ArticleKey, len(articles))
			for i := range articles {
				keys[i] = articles[i].Key()
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Fetching %d article bodies...\n", len(keys))
			available, err := a.Reader.Prefetch(cmd.Context(), keys, concurrency)
			if err != nil {
				return err
			}
			writePrefetch(cmd.OutOrStdout(), articles, available)
			return nil
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", article.DefaultPrefetchConcurrency, "extractions in flight at once")
	return cmd
}

func newSourcesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the enabled sources grouped by country",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			for _, w := range a.Catalog.Warnings() {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", w)
			}
			writeSources(cmd.OutOrStdout(), a.Catalog.ByCountry())
			return nil
		},
	}
}
