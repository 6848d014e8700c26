package main

import (
	"github.com/spf13/cobra"

	"github.com/joshuapare/hiveartifacts/internal/pipeline"
)

func init() {
	rootCmd.AddCommand(newUSBCmd())
}

func newUSBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "usb <hive|folder>...",
		Short: "Extract USB device history from the SYSTEM hive",
		Long: `The usb command lists every device instance below Enum\USBSTOR and
Enum\USB of the first selected hive named SYSTEM. Each subtree is taken from
ControlSet001, ControlSet002 or CurrentControlSet, whichever has it first.

Example:
  hiveartifacts usb /evidence/config/SYSTEM -o out`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArtifacts(cmd.Context(), args, []pipeline.Artifact{pipeline.USB})
		},
	}
}
