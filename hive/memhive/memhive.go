// Package memhive is an in-memory hive.Key tree. Extractor tests use it to
// describe registry layouts directly and to inject faults at any accessor.
package memhive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"

	"github.com/joshuapare/hiveartifacts/hive"
	"github.com/joshuapare/hiveartifacts/pkg/types"
)

var (
	_ hive.Key    = (*Key)(nil)
	_ hive.Value  = (*Value)(nil)
	_ hive.Tree   = (*Tree)(nil)
	_ hive.Source = (*Source)(nil)
)

// Key is a mutable in-memory key.
type Key struct {
	name     string
	stamp    time.Time
	children []*Key
	values   []*Value

	stampErr   error
	subkeysErr error
	valuesErr  error
	panicMsg   string
}

// NewKey returns an empty key.
func NewKey(name string) *Key {
	return &Key{name: name}
}

// Child returns the direct child called name, creating it when missing.
func (k *Key) Child(name string) *Key {
	for _, c := range k.children {
		if c.name == name {
			return c
		}
	}
	c := NewKey(name)
	k.children = append(k.children, c)
	return c
}

// Path walks or creates a backslash separated path.
func (k *Key) Path(path string) *Key {
	cur := k
	for _, seg := range split(path) {
		cur = cur.Child(seg)
	}
	return cur
}

// At sets the last-write time.
func (k *Key) At(t time.Time) *Key {
	k.stamp = t
	return k
}

// Set appends a value with an explicit type and decoded payload.
func (k *Key) Set(name string, typ types.RegType, data any) *Key {
	k.values = append(k.values, &Value{name: name, typ: typ, data: data})
	return k
}

// SetString appends a REG_SZ value.
func (k *Key) SetString(name, s string) *Key { return k.Set(name, types.REG_SZ, s) }

// SetStrings appends a REG_MULTI_SZ value.
func (k *Key) SetStrings(name string, items ...string) *Key {
	return k.Set(name, types.REG_MULTI_SZ, items)
}

// SetDWORD appends a REG_DWORD value.
func (k *Key) SetDWORD(name string, v uint32) *Key { return k.Set(name, types.REG_DWORD, v) }

// SetQWORD appends a REG_QWORD value.
func (k *Key) SetQWORD(name string, v uint64) *Key { return k.Set(name, types.REG_QWORD, v) }

// SetBinary appends a REG_BINARY value.
func (k *Key) SetBinary(name string, b []byte) *Key { return k.Set(name, types.REG_BINARY, b) }

// SetFaulty appends a value whose Data and Bytes fail with err.
func (k *Key) SetFaulty(name string, typ types.RegType, err error) *Key {
	k.values = append(k.values, &Value{name: name, typ: typ, dataErr: err})
	return k
}

// SetUnnamed appends a value whose Name and Type fail with err.
func (k *Key) SetUnnamed(err error) *Key {
	k.values = append(k.values, &Value{nameErr: err, typeErr: err, dataErr: err})
	return k
}

// FailLastWrite makes LastWrite return err.
func (k *Key) FailLastWrite(err error) *Key {
	k.stampErr = err
	return k
}

// FailSubkeys makes Subkeys and Open return err.
func (k *Key) FailSubkeys(err error) *Key {
	k.subkeysErr = err
	return k
}

// FailValues makes Values and Value return err.
func (k *Key) FailValues(err error) *Key {
	k.valuesErr = err
	return k
}

// PanicOnValues makes Values panic with msg.
func (k *Key) PanicOnValues(msg string) *Key {
	k.panicMsg = msg
	return k
}

func (k *Key) Name() string { return k.name }

func (k *Key) LastWrite() (time.Time, error) {
	if k.stampErr != nil {
		return time.Time{}, k.stampErr
	}
	return k.stamp, nil
}

func (k *Key) Subkeys() ([]hive.Key, error) {
	if k.subkeysErr != nil {
		return nil, k.subkeysErr
	}
	out := make([]hive.Key, len(k.children))
	for i, c := range k.children {
		out[i] = c
	}
	return out, nil
}

func (k *Key) Values() ([]hive.Value, error) {
	if k.panicMsg != "" {
		panic(k.panicMsg)
	}
	if k.valuesErr != nil {
		return nil, k.valuesErr
	}
	out := make([]hive.Value, len(k.values))
	for i, v := range k.values {
		out[i] = v
	}
	return out, nil
}

func (k *Key) Value(name string) (hive.Value, error) {
	if k.valuesErr != nil {
		return nil, k.valuesErr
	}
	for _, v := range k.values {
		if v.nameErr == nil && strings.EqualFold(v.name, name) {
			return v, nil
		}
	}
	return nil, types.NotFound(fmt.Sprintf("value %q", name))
}

func (k *Key) Open(path string) (hive.Key, error) {
	cur := k
	for _, seg := range split(path) {
		if cur.subkeysErr != nil {
			return nil, cur.subkeysErr
		}
		var next *Key
		for _, c := range cur.children {
			if strings.EqualFold(c.name, seg) {
				next = c
				break
			}
		}
		if next == nil {
			return nil, fmt.Errorf("open %q: %w", path, types.NotFound(fmt.Sprintf("subkey %q", seg)))
		}
		cur = next
	}
	return cur, nil
}

// Value is an in-memory value.
type Value struct {
	name string
	typ  types.RegType
	data any

	nameErr error
	typeErr error
	dataErr error
}

func (v *Value) Name() (string, error) { return v.name, v.nameErr }

func (v *Value) Type() (types.RegType, error) { return v.typ, v.typeErr }

func (v *Value) Data() (any, error) {
	if v.dataErr != nil {
		return nil, v.dataErr
	}
	return v.data, nil
}

// Bytes encodes the payload the way it is stored in a hive.
func (v *Value) Bytes() ([]byte, error) {
	if v.dataErr != nil {
		return nil, v.dataErr
	}
	switch d := v.data.(type) {
	case []byte:
		return d, nil
	case string:
		return utf16z(d)
	case []string:
		var out []byte
		for _, s := range d {
			b, err := utf16z(s)
			if err != nil {
				return nil, err
			}
			out = append(out, b...)
		}
		return append(out, 0, 0), nil
	case uint32:
		return binary.LittleEndian.AppendUint32(nil, d), nil
	case uint64:
		return binary.LittleEndian.AppendUint64(nil, d), nil
	case nil:
		return nil, nil
	default:
		return nil, errors.New("memhive: unsupported payload type")
	}
}

func utf16z(s string) ([]byte, error) {
	b, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, err
	}
	return append(b, 0, 0), nil
}

func split(path string) []string {
	var out []string
	for _, seg := range strings.Split(strings.ReplaceAll(path, "/", `\`), `\`) {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// Tree wraps a root key as a hive.Tree.
type Tree struct {
	root   *Key
	closed bool
}

func (t *Tree) Root() (hive.Key, error) {
	if t.closed {
		return nil, types.ErrClosed
	}
	return t.root, nil
}

func (t *Tree) Close() error {
	t.closed = true
	return nil
}

// Closed reports whether Close was called.
func (t *Tree) Closed() bool { return t.closed }

// Source is a named in-memory hive.
type Source struct {
	name    string
	root    *Key
	openErr error
	opened  []*Tree
}

// NewSource returns a Source that opens root under the given file name.
func NewSource(name string, root *Key) *Source {
	return &Source{name: name, root: root}
}

// FailOpen makes Open return err.
func (s *Source) FailOpen(err error) *Source {
	s.openErr = err
	return s
}

func (s *Source) Name() string { return s.name }

func (s *Source) Open() (hive.Tree, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	t := &Tree{root: s.root}
	s.opened = append(s.opened, t)
	return t, nil
}

// Opened returns every tree handed out so far.
func (s *Source) Opened() []*Tree { return s.opened }
