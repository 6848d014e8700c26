package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/joshuapare/hiveartifacts/internal/config"
	"github.com/joshuapare/hiveartifacts/internal/discover"
	"github.com/joshuapare/hiveartifacts/internal/logger"
	"github.com/joshuapare/hiveartifacts/internal/pipeline"
	"github.com/joshuapare/hiveartifacts/internal/store"
)

// resolveHives expands folder arguments into the hives found below them.
// File arguments are taken as given.
func resolveHives(ctx context.Context, cfg config.Config, args []string) ([]string, error) {
	var hives []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			hives = append(hives, arg)
			continue
		}
		found, err := discover.Scan(ctx, afero.NewOsFs(), arg, discover.Options{
			MinSize: cfg.Discover.MinSize,
			Logger:  logger.WithComponent("discover"),
		})
		if err != nil {
			return nil, err
		}
		printVerbose("Found %d hive(s) in %s\n", len(found), arg)
		hives = append(hives, discover.Paths(found)...)
	}
	if len(hives) == 0 {
		return nil, pipeline.ErrNoHives
	}
	return hives, nil
}

// runArtifacts extracts the given artifact kinds from the hives named by
// args and prints the run summary.
func runArtifacts(ctx context.Context, args []string, artifacts []pipeline.Artifact) error {
	cfg, err := settings()
	if err != nil {
		return err
	}
	hives, err := resolveHives(ctx, cfg, args)
	if err != nil {
		return err
	}

	req := pipeline.Request{
		Hives:      hives,
		Artifacts:  artifacts,
		OutputDir:  cfg.OutputDir,
		HashInputs: cfg.HashInputs,
		Workers:    cfg.Workers,
		Logger:     logger.WithComponent("pipeline"),
	}
	if cfg.Store.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.StorePath()), 0o755); err != nil {
			return fmt.Errorf("failed to create store folder: %w", err)
		}
		st, err := store.Open(cfg.StorePath())
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer st.Close()
		req.Store = st
	}

	printVerbose("Extracting from %d hive(s) into %s\n", len(hives), cfg.OutputDir)
	sum, runErr := pipeline.Run(ctx, req)
	if errors.Is(runErr, context.Canceled) {
		return runErr
	}

	if jsonOut {
		if err := printJSON(sum); err != nil {
			return err
		}
	} else {
		printSummary(sum, artifacts, cfg)
	}
	if runErr != nil {
		return fmt.Errorf("%d extraction(s) failed", len(sum.Errors))
	}
	return nil
}

func printSummary(sum pipeline.Summary, artifacts []pipeline.Artifact, cfg config.Config) {
	if len(artifacts) == 0 {
		artifacts = pipeline.AllArtifacts
	}
	printInfo("Processed %d hive(s)\n", sum.Hives)
	for _, a := range artifacts {
		switch a {
		case pipeline.Registry:
			for _, r := range sum.Registry {
				if r.Error != "" {
					printInfo("  %-12s failed: %s\n", r.Hive, r.Error)
					continue
				}
				printInfo("  %-12s %d keys, %d values, %d errors\n", r.Hive, r.Keys, r.Values, r.Errors)
			}
		case pipeline.USB:
			printInfo("USB devices:       %d\n", sum.USBDevices)
		case pipeline.Bluetooth:
			printInfo("Bluetooth devices: %d\n", sum.BluetoothDevices)
		case pipeline.Network:
			printInfo("Network profiles:  %d\n", sum.NetworkProfiles)
		}
	}
	for _, path := range sum.Outputs {
		printVerbose("  wrote %s\n", path)
	}
	if cfg.Store.Enabled {
		printInfo("Element store:     %s\n", cfg.StorePath())
	}
	for _, e := range sum.Errors {
		printError("%s\n", e)
	}
	printInfo("Output written to %s\n", cfg.OutputDir)
}
