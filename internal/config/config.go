// Package config loads the run configuration for hiveartifacts.
//
// Configuration comes from an optional YAML file. Fields left out of the
// file take their values from Default; command-line flags are applied on
// top by the caller.
package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/imdario/mergo"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/joshuapare/hiveartifacts/internal/discover"
	"github.com/joshuapare/hiveartifacts/internal/logger"
)

// Config is the full run configuration.
type Config struct {
	// OutputDir receives Registry/, USB_Devices/, Bluetooth_Devices/ and
	// Network_Connections/.
	OutputDir string `yaml:"output_dir"`

	Log logger.Config `yaml:"log"`

	Store StoreConfig `yaml:"store"`

	// HashInputs writes Manifest.csv with digests of every input hive.
	HashInputs bool `yaml:"hash_inputs"`

	// Workers bounds how many artifact kinds run at once.
	Workers int `yaml:"workers"`

	Discover DiscoverConfig `yaml:"discover"`
}

// StoreConfig controls the SQLite element store.
type StoreConfig struct {
	Enabled bool `yaml:"enabled"`
	// Path is relative to OutputDir unless absolute.
	Path string `yaml:"path"`
}

// DiscoverConfig tunes hive discovery.
type DiscoverConfig struct {
	MinSize int64 `yaml:"min_size"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		OutputDir: "output",
		Log: logger.Config{
			Level:  "info",
			Format: logger.FormatAuto,
		},
		Store: StoreConfig{
			Path: "artifacts.db",
		},
		Workers: 4,
		Discover: DiscoverConfig{
			MinSize: discover.DefaultMinSize,
		},
	}
}

// Load reads the YAML file at path from fs and fills unset fields from
// Default. An empty path returns Default unchanged.
func Load(fs afero.Fs, path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document and fills unset fields from Default.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := mergo.Merge(&cfg, Default()); err != nil {
		return Config{}, fmt.Errorf("apply defaults: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("config: output_dir is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("config: workers must be positive, got %d", c.Workers)
	}
	if c.Discover.MinSize < 0 {
		return fmt.Errorf("config: discover.min_size must not be negative, got %d", c.Discover.MinSize)
	}
	return nil
}

// StorePath resolves Store.Path against OutputDir.
func (c Config) StorePath() string {
	if filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(c.OutputDir, c.Store.Path)
}
