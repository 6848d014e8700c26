package main

import (
	"github.com/spf13/cobra"

	"github.com/joshuapare/hiveartifacts/internal/pipeline"
)

func init() {
	rootCmd.AddCommand(newBluetoothCmd())
}

func newBluetoothCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bluetooth <hive|folder>...",
		Short: "Extract paired Bluetooth devices from SYSTEM hives",
		Long: `The bluetooth command reads BTHPORT\Parameters\Devices from every
selected hive named SYSTEM, decoding device names, the class of device and
the last seen and last connected times.

Example:
  hiveartifacts bluetooth /evidence/config -o out`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArtifacts(cmd.Context(), args, []pipeline.Artifact{pipeline.Bluetooth})
		},
	}
}
