package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/joshuapare/hiveartifacts/internal/pipeline"
)

var allArtifacts []string

func init() {
	cmd := newAllCmd()
	cmd.Flags().StringSliceVar(&allArtifacts, "only", nil, "Restrict to artifacts (registry, usb, bluetooth, network)")
	rootCmd.AddCommand(cmd)
}

func newAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all <hive|folder>...",
		Short: "Run every extraction",
		Long: `The all command runs the registry export and the USB, Bluetooth and
network profile extractions over the selected hives. Extractions run
concurrently, bounded by --workers.

Example:
  hiveartifacts all /evidence/config -o out --hash --store
  hiveartifacts all /evidence/config --only usb,bluetooth`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAll(cmd.Context(), args)
		},
	}
}

func runAll(ctx context.Context, args []string) error {
	var artifacts []pipeline.Artifact
	for _, name := range allArtifacts {
		a, err := pipeline.ParseArtifact(name)
		if err != nil {
			return err
		}
		artifacts = append(artifacts, a)
	}
	return runArtifacts(ctx, args, artifacts)
}
