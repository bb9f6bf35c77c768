package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ETAnderson/celltrack/internal/format"
	"github.com/ETAnderson/celltrack/internal/hierarchy"
)

var summaryFlags struct {
	site     string
	phase    string
	markdown bool
	records  bool
	scopes   bool
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print pass/fail counts per cell type and cell",
	RunE:  runSummary,
}

func init() {
	f := summaryCmd.Flags()
	f.StringVar(&summaryFlags.site, "site", "", "site name (required)")
	f.StringVar(&summaryFlags.phase, "phase", "", "phase name (required)")
	f.BoolVar(&summaryFlags.markdown, "markdown", false, "render Markdown tables")
	f.BoolVar(&summaryFlags.records, "records", false, "also list every record")
	f.BoolVar(&summaryFlags.scopes, "scopes", false, "also break each cell down by scope")

	_ = summaryCmd.MarkFlagRequired("site")
	_ = summaryCmd.MarkFlagRequired("phase")
}

func runSummary(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	backend, release, err := openBackend(ctx, logger)
	if err != nil {
		return err
	}
	defer release()

	recs, err := backend.GetBySite(ctx, summaryFlags.site, summaryFlags.phase)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}

	mode := format.ASCII
	if summaryFlags.markdown {
		mode = format.Markdown
	}

	out := cmd.OutOrStdout()
	groups := hierarchy.Build(recs)

	fmt.Fprintf(out, "Site %s, phase %s: %d records\n\n", summaryFlags.site, summaryFlags.phase, len(recs))
	fmt.Fprintln(out, format.Summary(groups, mode))

	if summaryFlags.scopes {
		for _, g := range groups {
			for _, name := range g.CellNames() {
				cell := g.Cells[name]
				fmt.Fprintf(out, "\n%s / %s\n", g.CellType, name)
				fmt.Fprintln(out, format.Scopes(cell, mode))
			}
		}
	}

	if summaryFlags.records {
		fmt.Fprintln(out)
		fmt.Fprintln(out, format.Records(recs, mode))
	}
	return nil
}
