package reader

import (
	"bytes"
	"encoding/binary"
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

func sampleTree() *hivebuild.Key {
	root := hivebuild.NewKey("ROOT")
	enum := root.Path(`ControlSet001\Enum\USBSTOR`)
	enum.At(time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC))
	dev := enum.Child("Disk&Ven_Kingston&Prod_DataTraveler")
	dev.Child("0123456789&0").
		SetSZ("FriendlyName", "Kingston DataTraveler USB Device").
		SetMultiSZ("HardwareID", `USBSTOR\DiskKingston`, `GenDisk`).
		SetDWORD("ConfigFlags", 0).
		SetQWORD("InstallDate", 133170048000000000).
		SetBinary("Blob", []byte{0xde, 0xad, 0xbe, 0xef, 0x01})
	root.Child("Größe").SetSZ("", "default")
	root.Child("键").SetSZ("Wert", "x")
	return root
}

func openSample(t *testing.T, root *hivebuild.Key) types.Reader {
	t.Helper()
	r, err := OpenBytes(hivebuild.Build(root), types.OpenOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestOpenRejectsNonHive(t *testing.T) {
	_, err := OpenBytes(bytes.Repeat([]byte{'x'}, 8192), types.OpenOptions{})
	require.ErrorIs(t, err, types.ErrNotHive)

	_, err = OpenBytes([]byte("regf"), types.OpenOptions{})
	require.Error(t, err)
	var te *types.Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, types.ErrKindFormat, te.Kind)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "SYSTEM"), types.OpenOptions{})
	require.ErrorIs(t, err, fs.ErrNotExist)
	assert.NotErrorIs(t, err, types.ErrNotHive)
}

func TestOpenFromDisk(t *testing.T) {
	path := hivebuild.WriteFile(t, t.TempDir(), "SYSTEM", sampleTree())
	r, err := Open(path, types.OpenOptions{})
	require.NoError(t, err)
	defer r.Close()

	info := r.Info()
	assert.Equal(t, uint32(1), info.MajorVersion)
	assert.Equal(t, uint32(5), info.MinorVersion)
	assert.True(t, info.LastWrite.Equal(hivebuild.DefaultTime))

	root, err := r.Root()
	require.NoError(t, err)
	name, err := r.KeyName(root)
	require.NoError(t, err)
	assert.Equal(t, "ROOT", name)
}

func TestFind(t *testing.T) {
	r := openSample(t, sampleTree())

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "plain", path: `ControlSet001\Enum\USBSTOR`, want: "USBSTOR"},
		{name: "case insensitive", path: `controlset001\ENUM\usbstor`, want: "USBSTOR"},
		{name: "forward slashes", path: "ControlSet001/Enum", want: "Enum"},
		{name: "hklm alias", path: `HKLM\ControlSet001`, want: "ControlSet001"},
		{name: "root name prefix", path: `ROOT\ControlSet001`, want: "ControlSet001"},
		{name: "empty is root", path: "", want: "ROOT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := r.Find(tt.path)
			require.NoError(t, err)
			got, err := r.KeyName(id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := r.Find(`ControlSet002\Enum`)
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestTimestamps(t *testing.T) {
	r := openSample(t, sampleTree())
	id, err := r.Find(`ControlSet001\Enum\USBSTOR`)
	require.NoError(t, err)
	ts, err := r.KeyTimestamp(id)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC), ts)
}

func TestTypedValues(t *testing.T) {
	r := openSample(t, sampleTree())
	node, err := r.Find(`ControlSet001\Enum\USBSTOR\Disk&Ven_Kingston&Prod_DataTraveler\0123456789&0`)
	require.NoError(t, err)

	values, err := r.Values(node)
	require.NoError(t, err)
	require.Len(t, values, 5)

	v, err := r.GetValue(node, "friendlyname")
	require.NoError(t, err)
	s, err := r.ValueString(v)
	require.NoError(t, err)
	assert.Equal(t, "Kingston DataTraveler USB Device", s)
	_, err = r.ValueDWORD(v)
	require.ErrorIs(t, err, types.ErrTypeMismatch)

	v, err = r.GetValue(node, "HardwareID")
	require.NoError(t, err)
	list, err := r.ValueStrings(v)
	require.NoError(t, err)
	assert.Equal(t, []string{`USBSTOR\DiskKingston`, "GenDisk"}, list)

	v, err = r.GetValue(node, "ConfigFlags")
	require.NoError(t, err)
	typ, err := r.ValueType(v)
	require.NoError(t, err)
	assert.Equal(t, types.REG_DWORD, typ)
	d, err := r.ValueDWORD(v)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), d)

	v, err = r.GetValue(node, "InstallDate")
	require.NoError(t, err)
	q, err := r.ValueQWORD(v)
	require.NoError(t, err)
	assert.Equal(t, uint64(133170048000000000), q)

	v, err = r.GetValue(node, "Blob")
	require.NoError(t, err)
	raw, err := r.ValueBytes(v)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef, 0x01}, raw)

	_, err = r.GetValue(node, "Missing")
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestNameEncodings(t *testing.T) {
	r := openSample(t, sampleTree())

	latin, err := r.Find("Größe")
	require.NoError(t, err)
	v, err := r.GetValue(latin, "")
	require.NoError(t, err)
	name, err := r.ValueName(v)
	require.NoError(t, err)
	assert.Equal(t, "", name)

	wide, err := r.Find("键")
	require.NoError(t, err)
	got, err := r.KeyName(wide)
	require.NoError(t, err)
	assert.Equal(t, "键", got)
}

func TestBigData(t *testing.T) {
	payload := make([]byte, 2*hivebuild.BigDataChunk+100)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	root := hivebuild.NewKey("ROOT")
	root.SetBinary("Large", payload)

	r := openSample(t, root)
	rootID, err := r.Root()
	require.NoError(t, err)
	v, err := r.GetValue(rootID, "Large")
	require.NoError(t, err)
	got, err := r.ValueBytes(v)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestCorruptStructures(t *testing.T) {
	root := hivebuild.NewKey("ROOT")
	root.Child("Good").SetSZ("a", "b")
	root.Child("Bad").Broken = true
	root.SetCorrupt("Damaged", types.REG_BINARY)

	r := openSample(t, root)
	rootID, err := r.Root()
	require.NoError(t, err)

	children, err := r.Subkeys(rootID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	_, err = r.KeyName(children[1])
	require.ErrorIs(t, err, types.ErrCorrupt)

	// Lookup skips the unreadable child.
	_, err = r.Lookup(rootID, "Good")
	require.NoError(t, err)

	v, err := r.GetValue(rootID, "Damaged")
	require.NoError(t, err)
	_, err = r.ValueBytes(v)
	require.ErrorIs(t, err, types.ErrCorrupt)
}

func TestTruncatedDataTolerant(t *testing.T) {
	root := hivebuild.NewKey("ROOT")
	root.SetBinary("Blob", bytes.Repeat([]byte{0xAB}, 16))
	img := hivebuild.Build(root)

	// Inflate the declared length of the only value past its data cell.
	vk := bytes.Index(img, []byte("vk\x04\x00"))
	require.Positive(t, vk)
	binary.LittleEndian.PutUint32(img[vk+4:], 64)

	strict, err := OpenBytes(img, types.OpenOptions{})
	require.NoError(t, err)
	rootID, err := strict.Root()
	require.NoError(t, err)
	v, err := strict.GetValue(rootID, "Blob")
	require.NoError(t, err)
	_, err = strict.ValueBytes(v)
	require.ErrorIs(t, err, types.ErrCorrupt)

	lenient, err := OpenBytes(img, types.OpenOptions{Tolerant: true})
	require.NoError(t, err)
	got, err := lenient.ValueBytes(v)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(got), 16)
}

func TestClosedReader(t *testing.T) {
	r, err := OpenBytes(hivebuild.Build(hivebuild.NewKey("ROOT")), types.OpenOptions{})
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	_, err = r.Root()
	require.ErrorIs(t, err, types.ErrClosed)
}

func TestOpenDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "SYSTEM"), 0o755))
	_, err := Open(filepath.Join(dir, "SYSTEM"), types.OpenOptions{})
	require.Error(t, err)
}

func TestSplitPath(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitPath(`\a\\b/c\`))
	assert.Empty(t, SplitPath(`\`))
}
