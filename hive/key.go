package hive

import (
	"fmt"
	"time"

	"github.com/joshuapare/hiveartifacts/internal/reader"
	"github.com/joshuapare/hiveartifacts/pkg/types"
)

// regKey is a Key over a types.Reader. A key whose name could not be decoded
// keeps the error and returns it from every accessor but Name.
type regKey struct {
	r    types.Reader
	id   types.NodeID
	name string
	err  error
}

func (k *regKey) Name() string { return k.name }

func (k *regKey) ID() types.NodeID { return k.id }

func (k *regKey) LastWrite() (time.Time, error) {
	if k.err != nil {
		return time.Time{}, k.err
	}
	return k.r.KeyTimestamp(k.id)
}

func (k *regKey) Subkeys() ([]Key, error) {
	if k.err != nil {
		return nil, k.err
	}
	ids, err := k.r.Subkeys(k.id)
	if err != nil {
		return nil, err
	}
	out := make([]Key, len(ids))
	for i, id := range ids {
		out[i] = k.child(id)
	}
	return out, nil
}

func (k *regKey) child(id types.NodeID) *regKey {
	name, err := k.r.KeyName(id)
	if err != nil {
		return &regKey{r: k.r, id: id, name: fmt.Sprintf("{unreadable key @%#x}", uint32(id)), err: err}
	}
	return &regKey{r: k.r, id: id, name: name}
}

func (k *regKey) Values() ([]Value, error) {
	if k.err != nil {
		return nil, k.err
	}
	ids, err := k.r.Values(k.id)
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(ids))
	for i, id := range ids {
		out[i] = &regValue{r: k.r, id: id}
	}
	return out, nil
}

func (k *regKey) Value(name string) (Value, error) {
	if k.err != nil {
		return nil, k.err
	}
	id, err := k.r.GetValue(k.id, name)
	if err != nil {
		return nil, err
	}
	return &regValue{r: k.r, id: id}, nil
}

func (k *regKey) Open(path string) (Key, error) {
	if k.err != nil {
		return nil, k.err
	}
	cur := k
	for _, seg := range reader.SplitPath(path) {
		id, err := k.r.Lookup(cur.id, seg)
		if err != nil {
			return nil, fmt.Errorf("open %q: %w", path, err)
		}
		cur = cur.child(id)
		if cur.err != nil {
			return nil, fmt.Errorf("open %q: %w", path, cur.err)
		}
	}
	return cur, nil
}

type regValue struct {
	r  types.Reader
	id types.ValueID
}

func (v *regValue) Name() (string, error) { return v.r.ValueName(v.id) }

func (v *regValue) Type() (types.RegType, error) { return v.r.ValueType(v.id) }

func (v *regValue) Bytes() ([]byte, error) { return v.r.ValueBytes(v.id) }

func (v *regValue) Data() (any, error) {
	t, err := v.r.ValueType(v.id)
	if err != nil {
		return nil, err
	}
	switch t {
	case types.REG_SZ, types.REG_EXPAND_SZ:
		return v.r.ValueString(v.id)
	case types.REG_MULTI_SZ:
		return v.r.ValueStrings(v.id)
	case types.REG_DWORD, types.REG_DWORD_BE:
		return v.r.ValueDWORD(v.id)
	case types.REG_QWORD:
		return v.r.ValueQWORD(v.id)
	default:
		return v.r.ValueBytes(v.id)
	}
}
