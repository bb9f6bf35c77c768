package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ETAnderson/celltrack/internal/catalog"
)

var seedFlags struct {
	file string
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load sites, cells and test cases from a catalog file into a local store",
	Long: "Upserts a YAML (or .json) catalog through the tracking service.\n" +
		"Always writes to the local store selected by --backend.",
	RunE: runSeed,
}

func init() {
	f := seedCmd.Flags()
	f.StringVarP(&seedFlags.file, "file", "f", "", "catalog file (required)")

	_ = seedCmd.MarkFlagRequired("file")
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	cat, err := catalog.LoadFromPath(seedFlags.file)
	if err != nil {
		return err
	}

	svc, store, err := openService(ctx, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	st, err := cat.Apply(ctx, svc)
	if err != nil {
		return fmt.Errorf("seed %s: %w (applied so far: %s)", seedFlags.file, err, st)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %s store: %s\n", rootFlags.backend, st)
	return nil
}
