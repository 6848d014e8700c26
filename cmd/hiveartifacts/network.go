package main

import (
	"github.com/spf13/cobra"

	"github.com/joshuapare/hiveartifacts/internal/pipeline"
)

func init() {
	rootCmd.AddCommand(newNetworkCmd())
}

func newNetworkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "network <hive|folder>...",
		Short: "Extract network profile history from SOFTWARE hives",
		Long: `The network command reads NetworkList\Profiles from every selected hive
named SOFTWARE. Creation and last connection dates are decoded from
SYSTEMTIME or FILETIME data.

Example:
  hiveartifacts network /evidence/config/SOFTWARE -o out`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArtifacts(cmd.Context(), args, []pipeline.Artifact{pipeline.Network})
		},
	}
}
