package discover

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSized(t *testing.T, fs afero.Fs, path string, size int) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fs, path, make([]byte, size), 0o644))
}

func TestScan(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeSized(t, fs, "/case/config/SYSTEM", 10)
	writeSized(t, fs, "/case/config/software", 10)
	writeSized(t, fs, "/case/config/SYSTEM.LOG1", 1<<20)
	writeSized(t, fs, "/case/users/bob/NTUSER.DAT", 10)
	writeSized(t, fs, "/case/users/bob/AppData/UsrClass.dat", 10)
	writeSized(t, fs, "/case/misc/bigblob", DefaultMinSize+1)
	writeSized(t, fs, "/case/misc/exactly", DefaultMinSize)
	writeSized(t, fs, "/case/misc/ab", DefaultMinSize*4)
	writeSized(t, fs, "/case/misc/notes.txt", DefaultMinSize*4)

	got, err := Scan(context.Background(), fs, "/case", Options{})
	require.NoError(t, err)

	want := []string{
		"/case/config/SYSTEM",
		"/case/config/software",
		"/case/misc/bigblob",
		"/case/users/bob/AppData/UsrClass.dat",
		"/case/users/bob/NTUSER.DAT",
	}
	assert.Equal(t, want, Paths(got))
	assert.True(t, got[0].Known)
	assert.False(t, got[2].Known)
	assert.Equal(t, int64(DefaultMinSize+1), got[2].Size)
	assert.Equal(t, "software", got[1].Name())
}

func TestScanMinSize(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeSized(t, fs, "/in/blob", 200)

	got, err := Scan(context.Background(), fs, "/in", Options{MinSize: 100})
	require.NoError(t, err)
	assert.Equal(t, []string{"/in/blob"}, Paths(got))

	got, err = Scan(context.Background(), fs, "/in", Options{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScanErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeSized(t, fs, "/in/SYSTEM", 10)

	_, err := Scan(context.Background(), fs, "/missing", Options{})
	require.Error(t, err)

	_, err = Scan(context.Background(), fs, "/in/SYSTEM", Options{})
	require.ErrorContains(t, err, "not a directory")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Scan(ctx, fs, "/in", Options{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestIsKnownName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"SYSTEM", true},
		{"system", true},
		{"Amcache.hve", true},
		{"usrclass.dat", true},
		{"SYSTEM.LOG2", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsKnownName(tt.name), tt.name)
	}
}
