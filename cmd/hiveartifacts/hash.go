package main

import (
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/joshuapare/hiveartifacts/hive"
	"github.com/joshuapare/hiveartifacts/internal/evidence"
)

func init() {
	rootCmd.AddCommand(newHashCmd())
}

func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <file>...",
		Short: "Print size, SHA-256 and BLAKE3 of hive files",
		Long: `The hash command prints the size and digests recorded in Manifest.csv
for each file, without running any extraction. With --verbose the regf
header of each hive is printed as well.

Example:
  hiveartifacts hash /evidence/config/SYSTEM /evidence/config/SOFTWARE`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHash(args)
		},
	}
}

func runHash(args []string) error {
	fs := afero.NewOsFs()
	entries := make([]evidence.Entry, 0, len(args))
	for _, path := range args {
		e, err := evidence.HashFile(fs, path)
		if err != nil {
			return err
		}
		entries = append(entries, e)
	}

	if jsonOut {
		return printJSON(entries)
	}
	for _, e := range entries {
		printInfo("%s\n", e.Path)
		printInfo("  size:   %d\n", e.Size)
		printInfo("  sha256: %s\n", e.SHA256)
		printInfo("  blake3: %s\n", e.BLAKE3)
		if verbose {
			printHeader(e.Path)
		}
	}
	return nil
}

func printHeader(path string) {
	h, err := hive.Open(path)
	if err != nil {
		printVerbose("  header: %v\n", err)
		return
	}
	defer h.Close()

	info := h.Info()
	printVerbose("  format:     %d.%d\n", info.MajorVersion, info.MinorVersion)
	printVerbose("  sequence:   %d/%d\n", info.PrimarySequence, info.SecondarySequence)
	printVerbose("  last write: %s\n", info.LastWrite.UTC().Format(time.RFC3339))
	if info.PrimarySequence != info.SecondarySequence {
		printVerbose("  dirty:      sequence numbers differ\n")
	}
}
