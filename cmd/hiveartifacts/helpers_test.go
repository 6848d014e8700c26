package main

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/joshuapare/hiveartifacts/internal/testutil/hivebuild"
)

// writeEvidence writes a SYSTEM and a SOFTWARE hive into a fresh folder and
// returns the folder.
func writeEvidence(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	system := hivebuild.NewKey("ROOT")
	system.Path(`ControlSet001\Enum\USBSTOR\Disk&Ven_Kingston&Prod_DataTraveler\0019E06B9C85&0`).
		SetSZ("FriendlyName", "Kingston DataTraveler USB Device")
	system.Path(`ControlSet001\Enum\USB\VID_0951&PID_1666\0019E06B9C85`).
		SetSZ("DeviceDesc", "USB Mass Storage Device")
	system.Path(`ControlSet001\Services\BTHPORT\Parameters\Devices\5cf3709a41e2`).
		SetBinary("Name", hivebuild.SZ("Pixel Buds")).
		SetDWORD("COD", 0x240418)
	hivebuild.WriteFile(t, dir, "SYSTEM", system)

	software := hivebuild.NewKey("ROOT")
	software.Path(`Microsoft\Windows NT\CurrentVersion\NetworkList\Profiles\{A1}`).
		SetSZ("ProfileName", "Office").
		SetDWORD("Managed", 1)
	hivebuild.WriteFile(t, dir, "SOFTWARE", software)
	return dir
}

// resetFlags restores global flags and points output at a fresh folder.
func resetFlags(t *testing.T) string {
	t.Helper()
	out := t.TempDir()
	verbose = false
	quiet = false
	jsonOut = false
	configPath = ""
	outputDir = out
	workers = 0
	withStore = false
	hashInputs = false
	logFormat = "json"
	allArtifacts = nil
	scanMinSize = 0
	queryCount = false
	return out
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	return buf.String(), fnErr
}

// assertJSON checks that output is valid JSON
func assertJSON(t *testing.T, output string) {
	t.Helper()
	var result interface{}
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Errorf("invalid JSON output: %v\nOutput: %s", err, output)
	}
}

// assertContains checks that output contains all expected strings
func assertContains(t *testing.T, output string, expected []string) {
	t.Helper()
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("output missing expected string %q\nGot: %s", want, output)
		}
	}
}
