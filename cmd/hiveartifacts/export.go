package main

import (
	"github.com/spf13/cobra"

	"github.com/joshuapare/hiveartifacts/internal/pipeline"
)

func init() {
	rootCmd.AddCommand(newExportCmd())
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <hive|folder>...",
		Short: "Export every value of each hive to Registry/<hive>.csv",
		Long: `The export command walks each hive depth-first and writes one row per
value with its key path, type, rendered data and the key's last write time.
Unreadable keys and values produce error rows and the walk continues.

Example:
  hiveartifacts export /evidence/config/SYSTEM -o out
  hiveartifacts export /evidence/config --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArtifacts(cmd.Context(), args, []pipeline.Artifact{pipeline.Registry})
		},
	}
}
