package hive

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/hiveartifacts/internal/testutil/hivebuild"
	"github.com/joshuapare/hiveartifacts/pkg/types"
)

func buildSystem() *hivebuild.Key {
	root := hivebuild.NewKey("CMI-CreateHive{2A7FB991-7BBE-4F9D-B91E-7CB51D4737F5}")
	inst := root.Path(`ControlSet001\Enum\USB\VID_0781&PID_5583\4C530001`)
	inst.At(time.Date(2022, 8, 9, 10, 11, 12, 0, time.UTC))
	inst.SetSZ("DeviceDesc", "USB Mass Storage Device").
		SetSZ("", "default data").
		Set("Path", types.REG_EXPAND_SZ, hivebuild.SZ(`%SystemRoot%\x`)).
		SetMultiSZ("CompatibleIDs", `USB\Class_08`, `USB\COMPOSITE`).
		SetDWORD("ConfigFlags", 0x40).
		Set("BigEndian", types.REG_DWORD_BE, []byte{0, 0, 1, 0}).
		SetQWORD("Stamp", 42).
		SetBinary("Blob", []byte{1, 2, 3, 4, 5, 6}).
		Set("Link", types.REG_LINK, []byte("abcdef"))
	root.Child("Select").SetDWORD("Current", 1)
	return root
}

func openBuilt(t *testing.T, root *hivebuild.Key) *Hive {
	t.Helper()
	path := hivebuild.WriteFile(t, t.TempDir(), "SYSTEM", root)
	h, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(filepath.Join(dir, "missing"))
	require.ErrorIs(t, err, fs.ErrNotExist)

	junk := filepath.Join(dir, "junk")
	require.NoError(t, os.WriteFile(junk, make([]byte, 8192), 0o644))
	_, err = Open(junk)
	require.ErrorIs(t, err, types.ErrNotHive)
}

func TestRootAndOpen(t *testing.T) {
	h := openBuilt(t, buildSystem())
	assert.Equal(t, "SYSTEM", h.Name())

	root, err := h.Root()
	require.NoError(t, err)
	assert.Equal(t, "CMI-CreateHive{2A7FB991-7BBE-4F9D-B91E-7CB51D4737F5}", root.Name())

	inst, err := root.Open(`controlset001\enum\usb\VID_0781&PID_5583\4C530001`)
	require.NoError(t, err)
	assert.Equal(t, "4C530001", inst.Name())
	ts, err := inst.LastWrite()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2022, 8, 9, 10, 11, 12, 0, time.UTC), ts)

	same, err := root.Open("")
	require.NoError(t, err)
	assert.Equal(t, root.Name(), same.Name())

	_, err = root.Open(`ControlSet002\Enum`)
	require.ErrorIs(t, err, types.ErrNotFound)

	subs, err := root.Subkeys()
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "ControlSet001", subs[0].Name())
	assert.Equal(t, "Select", subs[1].Name())
}

func TestValueData(t *testing.T) {
	h := openBuilt(t, buildSystem())
	root, err := h.Root()
	require.NoError(t, err)
	inst, err := root.Open(`ControlSet001\Enum\USB\VID_0781&PID_5583\4C530001`)
	require.NoError(t, err)

	tests := []struct {
		name     string
		wantType types.RegType
		want     any
	}{
		{name: "DeviceDesc", wantType: types.REG_SZ, want: "USB Mass Storage Device"},
		{name: "", wantType: types.REG_SZ, want: "default data"},
		{name: "path", wantType: types.REG_EXPAND_SZ, want: `%SystemRoot%\x`},
		{name: "CompatibleIDs", wantType: types.REG_MULTI_SZ, want: []string{`USB\Class_08`, `USB\COMPOSITE`}},
		{name: "ConfigFlags", wantType: types.REG_DWORD, want: uint32(0x40)},
		{name: "BigEndian", wantType: types.REG_DWORD_BE, want: uint32(0x100)},
		{name: "Stamp", wantType: types.REG_QWORD, want: uint64(42)},
		{name: "Blob", wantType: types.REG_BINARY, want: []byte{1, 2, 3, 4, 5, 6}},
		{name: "Link", wantType: types.REG_LINK, want: []byte("abcdef")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := inst.Value(tt.name)
			require.NoError(t, err)
			typ, err := v.Type()
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, typ)
			got, err := v.Data()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err = inst.Value("SerialNumber")
	require.ErrorIs(t, err, types.ErrNotFound)

	values, err := inst.Values()
	require.NoError(t, err)
	require.Len(t, values, 9)
	name, err := values[1].Name()
	require.NoError(t, err)
	assert.Equal(t, "", name)
}

func TestDamagedChildIsContained(t *testing.T) {
	root := hivebuild.NewKey("ROOT")
	root.Child("Alive").SetSZ("x", "y")
	root.Child("Dead").Broken = true
	h := openBuilt(t, root)

	r, err := h.Root()
	require.NoError(t, err)
	subs, err := r.Subkeys()
	require.NoError(t, err)
	require.Len(t, subs, 2)

	dead := subs[1]
	assert.Contains(t, dead.Name(), "unreadable key")
	_, err = dead.Values()
	require.ErrorIs(t, err, types.ErrCorrupt)
	_, err = dead.Subkeys()
	require.ErrorIs(t, err, types.ErrCorrupt)
	_, err = dead.LastWrite()
	require.ErrorIs(t, err, types.ErrCorrupt)
}

func TestCorruptValueData(t *testing.T) {
	root := hivebuild.NewKey("ROOT")
	root.SetCorrupt("Broken", types.REG_SZ)
	h := openBuilt(t, root)

	r, err := h.Root()
	require.NoError(t, err)
	v, err := r.Value("Broken")
	require.NoError(t, err)
	typ, err := v.Type()
	require.NoError(t, err)
	assert.Equal(t, types.REG_SZ, typ)
	_, err = v.Data()
	require.ErrorIs(t, err, types.ErrCorrupt)
}

func TestFileSource(t *testing.T) {
	path := hivebuild.WriteFile(t, t.TempDir(), "SOFTWARE", hivebuild.NewKey("ROOT"))
	src := FileSource(path, types.OpenOptions{})
	assert.Equal(t, "SOFTWARE", src.Name())

	tree, err := src.Open()
	require.NoError(t, err)
	defer tree.Close()
	root, err := tree.Root()
	require.NoError(t, err)
	assert.Equal(t, "ROOT", root.Name())
}

func TestNamed(t *testing.T) {
	srcs := []Source{
		FileSource("/x/software", types.OpenOptions{}),
		FileSource("/x/SYSTEM", types.OpenOptions{}),
		FileSource("/y/System", types.OpenOptions{}),
		FileSource("/y/SYSTEM.LOG1", types.OpenOptions{}),
	}
	got := Named(srcs, "SYSTEM")
	require.Len(t, got, 2)
	assert.Equal(t, "SYSTEM", got[0].Name())
	assert.Equal(t, "System", got[1].Name())
	assert.Empty(t, Named(srcs, "SAM"))
}
