package config

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/hiveartifacts/internal/discover"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(afero.NewMemMapFs(), "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMergesDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/hiveartifacts.yaml", []byte(`
output_dir: /cases/42/out
log:
  level: debug
store:
  enabled: true
hash_inputs: true
`), 0o644))

	cfg, err := Load(fs, "/etc/hiveartifacts.yaml")
	require.NoError(t, err)

	assert.Equal(t, "/cases/42/out", cfg.OutputDir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "auto", cfg.Log.Format)
	assert.True(t, cfg.Store.Enabled)
	assert.Equal(t, "artifacts.db", cfg.Store.Path)
	assert.True(t, cfg.HashInputs)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, int64(discover.DefaultMinSize), cfg.Discover.MinSize)
	assert.Equal(t, filepath.Join("/cases/42/out", "artifacts.db"), cfg.StorePath())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "bad yaml", doc: "output_dir: [unterminated"},
		{name: "negative workers", doc: "workers: -2"},
		{name: "negative min size", doc: "discover:\n  min_size: -1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(afero.NewMemMapFs(), "/nope.yaml")
	require.Error(t, err)
}

func TestAbsoluteStorePath(t *testing.T) {
	cfg := Default()
	cfg.Store.Path = "/var/lib/artifacts.db"
	assert.Equal(t, "/var/lib/artifacts.db", cfg.StorePath())
}
