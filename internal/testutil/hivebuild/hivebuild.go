// Package hivebuild synthesises small but structurally valid regf images for
// tests. Images contain one bin, keys are written in insertion order, and
// values larger than a single cell are split into db blocks the way Windows
// does it.
package hivebuild

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/joshuapare/hiveartifacts/pkg/types"
)

// BigDataChunk is the largest payload stored in a single data cell.
const BigDataChunk = 16344

// DefaultTime is the last-write time given to keys that do not set one.
var DefaultTime = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

// Key is a node of the tree to synthesise.
type Key struct {
	Name      string
	LastWrite time.Time
	Values    []Value
	Subkeys   []*Key

	// Broken makes the parent's index entry point at a bogus cell.
	Broken bool
	// Loop replaces the key's own subkey list with its parent's, so the
	// key lists itself among its children.
	Loop bool
}

// Value is a value to attach to a key.
type Value struct {
	Name string
	Type types.RegType
	Data []byte

	// Corrupt stores a data offset that resolves to no cell.
	Corrupt bool
}

// NewKey returns an empty key.
func NewKey(name string) *Key {
	return &Key{Name: name}
}

// Child returns the direct child called name, creating it when missing.
func (k *Key) Child(name string) *Key {
	for _, c := range k.Subkeys {
		if c.Name == name {
			return c
		}
	}
	c := NewKey(name)
	k.Subkeys = append(k.Subkeys, c)
	return c
}

// Path walks or creates every segment of a backslash separated path.
func (k *Key) Path(path string) *Key {
	cur := k
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '\\' {
			if i > start {
				cur = cur.Child(path[start:i])
			}
			start = i + 1
		}
	}
	return cur
}

// At sets the key's last-write time.
func (k *Key) At(t time.Time) *Key {
	k.LastWrite = t
	return k
}

// Set appends a raw value.
func (k *Key) Set(name string, typ types.RegType, data []byte) *Key {
	k.Values = append(k.Values, Value{Name: name, Type: typ, Data: data})
	return k
}

// SetSZ appends a REG_SZ value.
func (k *Key) SetSZ(name, s string) *Key { return k.Set(name, types.REG_SZ, SZ(s)) }

// SetMultiSZ appends a REG_MULTI_SZ value.
func (k *Key) SetMultiSZ(name string, items ...string) *Key {
	return k.Set(name, types.REG_MULTI_SZ, MultiSZ(items...))
}

// SetDWORD appends a REG_DWORD value.
func (k *Key) SetDWORD(name string, v uint32) *Key { return k.Set(name, types.REG_DWORD, DWORD(v)) }

// SetQWORD appends a REG_QWORD value.
func (k *Key) SetQWORD(name string, v uint64) *Key { return k.Set(name, types.REG_QWORD, QWORD(v)) }

// SetBinary appends a REG_BINARY value.
func (k *Key) SetBinary(name string, b []byte) *Key { return k.Set(name, types.REG_BINARY, b) }

// SetCorrupt appends a value whose data cannot be read.
func (k *Key) SetCorrupt(name string, typ types.RegType) *Key {
	k.Values = append(k.Values, Value{Name: name, Type: typ, Data: make([]byte, 16), Corrupt: true})
	return k
}

// UTF16 encodes s as little-endian UTF-16 without terminator.
func UTF16(s string) []byte {
	b, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		panic(err)
	}
	return b
}

// SZ encodes a NUL-terminated UTF-16LE string.
func SZ(s string) []byte { return append(UTF16(s), 0, 0) }

// MultiSZ encodes a double-NUL-terminated string list.
func MultiSZ(items ...string) []byte {
	var out []byte
	for _, it := range items {
		out = append(out, SZ(it)...)
	}
	return append(out, 0, 0)
}

// DWORD encodes v little-endian.
func DWORD(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// QWORD encodes v little-endian.
func QWORD(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

// Build serialises the tree rooted at root into a regf image.
func Build(root *Key) []byte {
	w := &writer{}
	rootOff := w.key(root, 0xFFFFFFFF, true)

	binSize := roundUp(0x20+len(w.cells), 0x1000)
	if slack := binSize - 0x20 - len(w.cells); slack > 0 {
		// Remaining space is one free cell, as in a real bin.
		free := make([]byte, slack)
		binary.LittleEndian.PutUint32(free, uint32(slack))
		w.cells = append(w.cells, free...)
	}

	img := make([]byte, 0x1000+binSize)
	head := img[:0x1000]
	copy(head, "regf")
	binary.LittleEndian.PutUint32(head[0x04:], 1)
	binary.LittleEndian.PutUint32(head[0x08:], 1)
	binary.LittleEndian.PutUint64(head[0x0C:], filetime(DefaultTime))
	binary.LittleEndian.PutUint32(head[0x14:], 1)
	binary.LittleEndian.PutUint32(head[0x18:], 5)
	binary.LittleEndian.PutUint32(head[0x20:], 1)
	binary.LittleEndian.PutUint32(head[0x24:], rootOff)
	binary.LittleEndian.PutUint32(head[0x28:], uint32(binSize))
	binary.LittleEndian.PutUint32(head[0x2C:], 1)
	var sum uint32
	for i := 0; i < 0x1FC; i += 4 {
		sum ^= binary.LittleEndian.Uint32(head[i:])
	}
	binary.LittleEndian.PutUint32(head[0x1FC:], sum)

	bin := img[0x1000:]
	copy(bin, "hbin")
	binary.LittleEndian.PutUint32(bin[0x04:], 0)
	binary.LittleEndian.PutUint32(bin[0x08:], uint32(binSize))
	copy(bin[0x20:], w.cells)
	return img
}

// WriteFile builds root and stores it as dir/name, returning the path.
func WriteFile(t testing.TB, dir, name string, root *Key) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, Build(root), 0o644); err != nil {
		t.Fatalf("write hive: %v", err)
	}
	return path
}

type writer struct {
	cells []byte
}

// alloc appends an allocated cell large enough for n payload bytes and
// returns its bin-relative offset and payload slice.
func (w *writer) alloc(n int) (uint32, []byte) {
	size := roundUp(n+4, 8)
	off := uint32(0x20 + len(w.cells))
	cell := make([]byte, size)
	binary.LittleEndian.PutUint32(cell, uint32(-int32(size)))
	w.cells = append(w.cells, cell...)
	start := len(w.cells) - size + 4
	return off, w.cells[start : start+n]
}

// patch returns the payload of a previously allocated cell for rewriting.
func (w *writer) patch(off uint32, n int) []byte {
	start := int(off) - 0x20 + 4
	return w.cells[start : start+n]
}

func (w *writer) key(k *Key, parent uint32, root bool) uint32 {
	name, compressed := encodeName(k.Name)
	size := 0x4C + len(name)
	off, _ := w.alloc(size)

	stamp := k.LastWrite
	if stamp.IsZero() {
		stamp = DefaultTime
	}
	flags := uint16(0)
	if compressed {
		flags |= 0x20
	}
	if root {
		flags |= 0x0C
	}

	valueList := uint32(0xFFFFFFFF)
	if len(k.Values) > 0 {
		offs := make([]uint32, len(k.Values))
		for i, v := range k.Values {
			offs[i] = w.value(v)
		}
		var list []byte
		valueList, list = w.alloc(4 * len(offs))
		for i, o := range offs {
			binary.LittleEndian.PutUint32(list[i*4:], o)
		}
	}

	subList := uint32(0xFFFFFFFF)
	if len(k.Subkeys) > 0 {
		offs := make([]uint32, len(k.Subkeys))
		for i, c := range k.Subkeys {
			offs[i] = w.key(c, off, false)
			if c.Broken {
				offs[i] = 0x7FFFFFF0
			}
		}
		var list []byte
		subList, list = w.alloc(4 + 8*len(offs))
		copy(list, "lh")
		binary.LittleEndian.PutUint16(list[2:], uint16(len(offs)))
		for i, o := range offs {
			binary.LittleEndian.PutUint32(list[4+i*8:], o)
			binary.LittleEndian.PutUint32(list[8+i*8:], nameHash(k.Subkeys[i].Name))
		}
		for i, c := range k.Subkeys {
			if c.Loop && !c.Broken {
				child := w.patch(offs[i], 0x20)
				binary.LittleEndian.PutUint32(child[0x14:], uint32(len(offs)))
				binary.LittleEndian.PutUint32(child[0x1C:], subList)
			}
		}
	}

	nk := w.patch(off, size)
	copy(nk, "nk")
	binary.LittleEndian.PutUint16(nk[0x02:], flags)
	binary.LittleEndian.PutUint64(nk[0x04:], filetime(stamp))
	binary.LittleEndian.PutUint32(nk[0x10:], parent)
	binary.LittleEndian.PutUint32(nk[0x14:], uint32(len(k.Subkeys)))
	binary.LittleEndian.PutUint32(nk[0x1C:], subList)
	binary.LittleEndian.PutUint32(nk[0x20:], 0xFFFFFFFF)
	binary.LittleEndian.PutUint32(nk[0x24:], uint32(len(k.Values)))
	binary.LittleEndian.PutUint32(nk[0x28:], valueList)
	binary.LittleEndian.PutUint32(nk[0x2C:], 0xFFFFFFFF)
	binary.LittleEndian.PutUint32(nk[0x30:], 0xFFFFFFFF)
	binary.LittleEndian.PutUint16(nk[0x48:], uint16(len(name)))
	copy(nk[0x4C:], name)
	return off
}

func (w *writer) value(v Value) uint32 {
	name, compressed := encodeName(v.Name)
	dataLen := uint32(len(v.Data))
	var dataOff uint32
	switch {
	case v.Corrupt:
		dataOff = 0x7FFFFFF0
	case len(v.Data) <= 4:
		var inline [4]byte
		copy(inline[:], v.Data)
		dataOff = binary.LittleEndian.Uint32(inline[:])
		dataLen |= 0x80000000
	case len(v.Data) > BigDataChunk:
		dataOff = w.bigData(v.Data)
	default:
		var payload []byte
		dataOff, payload = w.alloc(len(v.Data))
		copy(payload, v.Data)
	}

	off, vk := w.alloc(0x14 + len(name))
	copy(vk, "vk")
	binary.LittleEndian.PutUint16(vk[0x02:], uint16(len(name)))
	binary.LittleEndian.PutUint32(vk[0x04:], dataLen)
	binary.LittleEndian.PutUint32(vk[0x08:], dataOff)
	binary.LittleEndian.PutUint32(vk[0x0C:], uint32(v.Type))
	if compressed {
		binary.LittleEndian.PutUint16(vk[0x10:], 1)
	}
	copy(vk[0x14:], name)
	return off
}

func (w *writer) bigData(data []byte) uint32 {
	var blocks []uint32
	for start := 0; start < len(data); start += BigDataChunk {
		end := min(start+BigDataChunk, len(data))
		off, payload := w.alloc(end - start + 4)
		copy(payload, data[start:end])
		blocks = append(blocks, off)
	}
	listOff, list := w.alloc(4 * len(blocks))
	for i, b := range blocks {
		binary.LittleEndian.PutUint32(list[i*4:], b)
	}
	off, db := w.alloc(0x0C)
	copy(db, "db")
	binary.LittleEndian.PutUint16(db[0x02:], uint16(len(blocks)))
	binary.LittleEndian.PutUint32(db[0x04:], listOff)
	return off
}

// encodeName prefers the compressed Windows-1252 form and falls back to
// UTF-16LE for names outside that code page.
func encodeName(name string) ([]byte, bool) {
	if b, err := charmap.Windows1252.NewEncoder().Bytes([]byte(name)); err == nil {
		return b, true
	}
	return UTF16(name), false
}

func nameHash(name string) uint32 {
	var h uint32
	for _, r := range name {
		if r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		h = h*37 + uint32(r)
	}
	return h
}

func filetime(t time.Time) uint64 {
	return uint64(t.Unix()+11644473600)*10_000_000 + uint64(t.Nanosecond()/100)
}

func roundUp(n, to int) int {
	return (n + to - 1) / to * to
}
