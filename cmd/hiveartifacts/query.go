package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/hiveartifacts/internal/store"
)

var queryCount bool

func init() {
	cmd := newQueryCmd()
	cmd.Flags().BoolVar(&queryCount, "count", false, "Print the number of elements per type")
	rootCmd.AddCommand(cmd)
}

func newQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <artifacts.db> [type]",
		Short: "Print elements from an element store",
		Long: `The query command prints the JSON elements written by --store, one per
line, optionally restricted to one type such as usb_device.

Example:
  hiveartifacts query out/artifacts.db usb_device
  hiveartifacts query out/artifacts.db --count`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), args)
		},
	}
}

func runQuery(ctx context.Context, args []string) error {
	if _, err := os.Stat(args[0]); err != nil {
		return err
	}
	st, err := store.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	if queryCount {
		counts, err := st.Count(ctx)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(counts)
		}
		for kind, n := range counts {
			printInfo("%s\t%d\n", kind, n)
		}
		return nil
	}

	kind := ""
	if len(args) > 1 {
		kind = args[1]
	}
	elements, err := st.Select(ctx, kind)
	if err != nil {
		return err
	}
	if jsonOut {
		raw := make([]json.RawMessage, len(elements))
		for i, e := range elements {
			raw[i] = json.RawMessage(e)
		}
		return printJSON(raw)
	}
	for _, e := range elements {
		printInfo("%s\n", e)
	}
	printVerbose("%d element(s)\n", len(elements))
	return nil
}
