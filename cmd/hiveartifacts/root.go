package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/joshuapare/hiveartifacts/internal/config"
	"github.com/joshuapare/hiveartifacts/internal/logger"
)

var (
	// Global flags
	verbose    bool
	quiet      bool
	jsonOut    bool
	configPath string
	outputDir  string
	workers    int
	withStore  bool
	hashInputs bool
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "hiveartifacts",
	Short: "Extract forensic artifacts from Windows registry hives",
	Long: `hiveartifacts reads raw Windows registry hive files and writes
human-reviewable CSV tables: a full export of every value, USB device
history, paired Bluetooth devices and network profile history.

Arguments may be hive files or folders; folders are scanned for hives.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "Output folder (overrides output_dir)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "Concurrent extractions (overrides workers)")
	rootCmd.PersistentFlags().BoolVar(&withStore, "store", false, "Also write every record to the SQLite element store")
	rootCmd.PersistentFlags().BoolVar(&hashInputs, "hash", false, "Write Manifest.csv with digests of every input hive")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: auto, console or json")
}

func execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError("%v\n", err)
		stop()
		os.Exit(1)
	}
}

// settings loads the configuration file and applies the global flags on top
// of it, then initialises logging.
func settings() (config.Config, error) {
	cfg, err := config.Load(afero.NewOsFs(), configPath)
	if err != nil {
		return config.Config{}, err
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	if withStore {
		cfg.Store.Enabled = true
	}
	if hashInputs {
		cfg.HashInputs = true
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	switch {
	case verbose:
		cfg.Log.Level = "debug"
	case quiet:
		cfg.Log.Level = "error"
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	if err := logger.Init(cfg.Log); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
