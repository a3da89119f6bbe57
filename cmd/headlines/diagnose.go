package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"newsbot/internal/usecase/fetch"
)

func newDiagnoseCmd(opts *options) *cobra.Command {
	var (
		asJSON  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Probe every enabled source once and report what it returns",
		Long: `Fetch and parse each enabled source a single time, without retries and
without writing to the cache, and print one line per source.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			results := a.Fetch.Diagnose(cmd.Context(), a.Catalog.EnabledSources(), timeout, a.Config.Fetch.ConcurrencyLimit)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			writeDiagnostics(cmd.OutOrStdout(), results)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the results as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "timeout per source")
	return cmd
}

func writeDiagnostics(w io.Writer, results []fetch.Diagnostic) {
	ok := 0
	for _, d := range results {
		if d.Status == fetch.DiagnosticOK {
			ok++
		}
		latest := "-"
		if d.Latest != nil {
			latest = d.Latest.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%-14s %-20s %4d items  latest %-10s  %6dms",
			d.Status, clip(d.SourceID, 20), d.ItemCount, latest, d.ResponseTime.Milliseconds())
		if d.Error != "" {
			fmt.Fprintf(w, "  %s", d.Error)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "%d/%d sources OK\n", ok, len(results))
}
