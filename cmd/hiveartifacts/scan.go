package main

import (
	"context"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/joshuapare/hiveartifacts/internal/discover"
	"github.com/joshuapare/hiveartifacts/internal/logger"
)

var scanMinSize int64

func init() {
	cmd := newScanCmd()
	cmd.Flags().Int64Var(&scanMinSize, "min-size", 0, "Smallest extension-less file taken for a hive (overrides discover.min_size)")
	rootCmd.AddCommand(cmd)
}

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <folder>",
		Short: "List candidate hive files below a folder",
		Long: `The scan command walks a folder and lists files that look like registry
hives: well-known hive names such as SYSTEM or NTUSER.DAT, and extension-less
files larger than the minimum size.

Example:
  hiveartifacts scan /evidence
  hiveartifacts scan /evidence --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), args)
		},
	}
}

type scanEntry struct {
	Path  string `json:"path"`
	Size  int64  `json:"size"`
	Known bool   `json:"known"`
}

func runScan(ctx context.Context, args []string) error {
	cfg, err := settings()
	if err != nil {
		return err
	}
	minSize := cfg.Discover.MinSize
	if scanMinSize > 0 {
		minSize = scanMinSize
	}

	found, err := discover.Scan(ctx, afero.NewOsFs(), args[0], discover.Options{
		MinSize: minSize,
		Logger:  logger.WithComponent("discover"),
	})
	if err != nil {
		return err
	}

	if jsonOut {
		entries := make([]scanEntry, len(found))
		for i, c := range found {
			entries[i] = scanEntry{Path: c.Path, Size: c.Size, Known: c.Known}
		}
		return printJSON(map[string]interface{}{
			"root":  args[0],
			"hives": entries,
		})
	}

	for _, c := range found {
		if verbose {
			how := "size"
			if c.Known {
				how = "name"
			}
			printInfo("%s\t%d\t%s\n", c.Path, c.Size, how)
			continue
		}
		printInfo("%s\n", c.Path)
	}
	printVerbose("Found %d potential registry hive(s)\n", len(found))
	return nil
}
