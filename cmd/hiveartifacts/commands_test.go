package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanCommand(t *testing.T) {
	tests := []struct {
		name        string
		json        bool
		verbose     bool
		wantContain []string
	}{
		{name: "plain", wantContain: []string{"SOFTWARE", "SYSTEM"}},
		{name: "verbose", verbose: true, wantContain: []string{"\tname", "Found 2 potential"}},
		{name: "json", json: true, wantContain: []string{`"hives"`, `"known": true`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags(t)
			evidence := writeEvidence(t)
			jsonOut = tt.json
			verbose = tt.verbose

			output, err := captureOutput(t, func() error {
				return runScan(context.Background(), []string{evidence})
			})
			require.NoError(t, err)
			assertContains(t, output, tt.wantContain)
			if tt.json {
				assertJSON(t, output)
			}
		})
	}
}

func TestScanCommandOrder(t *testing.T) {
	resetFlags(t)
	evidence := writeEvidence(t)

	output, err := captureOutput(t, func() error {
		return runScan(context.Background(), []string{evidence})
	})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(output), "\n")
	assert.Equal(t, []string{
		filepath.Join(evidence, "SOFTWARE"),
		filepath.Join(evidence, "SYSTEM"),
	}, lines)
}

func TestHashCommand(t *testing.T) {
	resetFlags(t)
	evidence := writeEvidence(t)
	jsonOut = true

	output, err := captureOutput(t, func() error {
		return runHash([]string{filepath.Join(evidence, "SYSTEM")})
	})
	require.NoError(t, err)

	var entries []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(output), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "SYSTEM", entries[0]["name"])
	assert.Len(t, entries[0]["sha256"], 64)
	assert.Len(t, entries[0]["blake3"], 64)

	jsonOut = false
	output, err = captureOutput(t, func() error {
		return runHash([]string{filepath.Join(evidence, "SOFTWARE")})
	})
	require.NoError(t, err)
	assertContains(t, output, []string{"sha256:", "blake3:", "size:"})

	_, err = captureOutput(t, func() error {
		return runHash([]string{filepath.Join(evidence, "missing")})
	})
	require.Error(t, err)
}

func TestHashCommandVerboseHeader(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		file        string
		wantContain []string
		wantMissing string
	}{
		{
			name:        "hive header",
			verbose:     true,
			file:        "SYSTEM",
			wantContain: []string{"format:     1.5", "sequence:   1/1", "last write: 2023-01-01T00:00:00Z"},
		},
		{
			name:        "not a hive",
			verbose:     true,
			file:        "NOTES",
			wantContain: []string{"sha256:", "header:"},
			wantMissing: "format:",
		},
		{
			name:        "quiet header",
			file:        "SYSTEM",
			wantContain: []string{"blake3:"},
			wantMissing: "format:",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags(t)
			evidence := writeEvidence(t)
			require.NoError(t, os.WriteFile(filepath.Join(evidence, "NOTES"), []byte("case notes"), 0o644))
			verbose = tt.verbose

			output, err := captureOutput(t, func() error {
				return runHash([]string{filepath.Join(evidence, tt.file)})
			})
			require.NoError(t, err)
			assertContains(t, output, tt.wantContain)
			if tt.wantMissing != "" {
				assert.NotContains(t, output, tt.wantMissing)
			}
		})
	}
}

func TestQueryMissingStore(t *testing.T) {
	resetFlags(t)
	_, err := captureOutput(t, func() error {
		return runQuery(context.Background(), []string{filepath.Join(t.TempDir(), "none.db")})
	})
	require.Error(t, err)
}
