package memhive

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/hiveartifacts/pkg/types"
)

func TestOpenAndLookup(t *testing.T) {
	root := NewKey("ROOT")
	root.Path(`A\B\C`).SetString("Name", "value")

	k, err := root.Open(`a\b\c`)
	require.NoError(t, err)
	assert.Equal(t, "C", k.Name())

	v, err := k.Value("NAME")
	require.NoError(t, err)
	data, err := v.Data()
	require.NoError(t, err)
	assert.Equal(t, "value", data)

	_, err = k.Value("other")
	require.ErrorIs(t, err, types.ErrNotFound)
	_, err = root.Open(`A\X`)
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestBytesEncoding(t *testing.T) {
	root := NewKey("ROOT").
		SetString("s", "A").
		SetStrings("m", "A", "B").
		SetDWORD("d", 1).
		SetQWORD("q", 2)

	tests := []struct {
		name string
		want []byte
	}{
		{name: "s", want: []byte{'A', 0, 0, 0}},
		{name: "m", want: []byte{'A', 0, 0, 0, 'B', 0, 0, 0, 0, 0}},
		{name: "d", want: []byte{1, 0, 0, 0}},
		{name: "q", want: []byte{2, 0, 0, 0, 0, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := root.Value(tt.name)
			require.NoError(t, err)
			got, err := v.Bytes()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFaultInjection(t *testing.T) {
	boom := errors.New("boom")
	root := NewKey("ROOT").SetFaulty("bad", types.REG_BINARY, boom).SetUnnamed(boom)
	root.Child("locked").FailSubkeys(boom).FailValues(boom).FailLastWrite(boom)

	v, err := root.Value("bad")
	require.NoError(t, err)
	_, err = v.Data()
	require.ErrorIs(t, err, boom)

	values, err := root.Values()
	require.NoError(t, err)
	_, err = values[1].Name()
	require.ErrorIs(t, err, boom)

	locked := root.Child("locked")
	_, err = locked.Subkeys()
	require.ErrorIs(t, err, boom)
	_, err = locked.Values()
	require.ErrorIs(t, err, boom)
	_, err = locked.LastWrite()
	require.ErrorIs(t, err, boom)

	assert.Panics(t, func() { _, _ = NewKey("x").PanicOnValues("kaput").Values() })
}

func TestSource(t *testing.T) {
	src := NewSource("SYSTEM", NewKey("ROOT"))
	tree, err := src.Open()
	require.NoError(t, err)
	root, err := tree.Root()
	require.NoError(t, err)
	assert.Equal(t, "ROOT", root.Name())
	require.NoError(t, tree.Close())
	assert.True(t, src.Opened()[0].Closed())

	_, err = NewSource("SYSTEM", nil).FailOpen(errors.New("nope")).Open()
	require.Error(t, err)
}
