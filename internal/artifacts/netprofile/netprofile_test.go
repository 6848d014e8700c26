package netprofile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/hiveartifacts/hive"
	"github.com/joshuapare/hiveartifacts/hive/memhive"
	"github.com/joshuapare/hiveartifacts/internal/sink"
	"github.com/joshuapare/hiveartifacts/internal/testutil/hivebuild"
	"github.com/joshuapare/hiveartifacts/internal/wintime"
	"github.com/joshuapare/hiveartifacts/pkg/types"
)

func softwareHive() *memhive.Key {
	root := memhive.NewKey("ROOT")
	profiles := root.Path(ProfilesPath)
	profiles.Child("{0A1B2C3D-0000-4000-8000-000000000001}").
		SetString("ProfileName", "CoffeeShop WiFi").
		SetString("Description", "CoffeeShop WiFi").
		SetBinary("DateCreated", wintime.EncodeSystemtime(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))).
		SetDWORD("Managed", 0).
		SetBinary("DateLastConnected", wintime.EncodeSystemtime(time.Date(2023, 3, 14, 15, 9, 26, 535*int(time.Millisecond), time.UTC)))
	profiles.Child("{0A1B2C3D-0000-4000-8000-000000000002}").
		SetString("ProfileName", "Network 2").
		SetQWORD("DateCreated", 133170048000000000).
		SetBinary("DateLastConnected", make([]byte, 12)).
		SetFaulty("Description", types.REG_SZ, errors.New("bad cell"))
	profiles.Child("{0A1B2C3D-0000-4000-8000-000000000003}").
		SetBinary("DateCreated", hivebuild.QWORD(133170048000000000))
	return root
}

func TestExtract(t *testing.T) {
	sources := []hive.Source{
		memhive.NewSource("SYSTEM", softwareHive()),
		memhive.NewSource("Software", softwareHive()),
	}
	mem := sink.NewMemory()
	n, err := Extract(context.Background(), sources, mem, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, [][]string{
		{"Software", "CoffeeShop WiFi", "CoffeeShop WiFi", "2023-01-01 00:00:00.000 UTC", "0", "2023-03-14 15:09:26.535 UTC"},
		{"Software", "Network 2", "[Error reading value]", "2023-01-01 00:00:00 UTC", "", "N/A"},
		{"Software", "", "", "2023-01-01 00:00:00 UTC", "", "N/A"},
	}, mem.Rows())
}

func TestExtractMissingProfiles(t *testing.T) {
	missing := memhive.NewSource("SOFTWARE", memhive.NewKey("ROOT"))
	mem := sink.NewMemory()
	n, err := Extract(context.Background(), []hive.Source{missing}, mem, Options{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, mem.Rows())
}

func TestExtractOpenFailureContinues(t *testing.T) {
	bad := memhive.NewSource("SOFTWARE", nil).FailOpen(types.ErrNotHive)
	good := memhive.NewSource("SOFTWARE", softwareHive())
	mem := sink.NewMemory()
	n, err := Extract(context.Background(), []hive.Source{bad, good}, mem, Options{})
	require.ErrorIs(t, err, types.ErrNotHive)
	assert.Equal(t, 3, n)
}

func TestExtractFromHiveFile(t *testing.T) {
	root := hivebuild.NewKey("ROOT")
	root.Path(ProfilesPath).Child("{E4A1}").
		SetSZ("ProfileName", "corp.example.com").
		SetDWORD("Managed", 1).
		SetBinary("DateCreated", wintime.EncodeSystemtime(time.Date(2021, 11, 2, 8, 0, 0, 0, time.UTC)))
	path := hivebuild.WriteFile(t, t.TempDir(), "SOFTWARE", root)

	mem := sink.NewMemory()
	n, err := Extract(context.Background(), []hive.Source{hive.FileSource(path, types.OpenOptions{})}, mem, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, [][]string{
		{"SOFTWARE", "corp.example.com", "", "2021-11-02 08:00:00.000 UTC", "1", "N/A"},
	}, mem.Rows())
}
