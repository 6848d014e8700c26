package hive

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joshuapare/hiveartifacts/internal/reader"
	"github.com/joshuapare/hiveartifacts/pkg/types"
)

// Key is a registry key handle.
type Key interface {
	// Name is the key's own name, or a placeholder when it could not be decoded.
	Name() string
	LastWrite() (time.Time, error)
	// Subkeys lists children in stored order.
	Subkeys() ([]Key, error)
	// Values lists values in stored order.
	Values() ([]Value, error)
	// Value finds a value by name. The empty name is the default value.
	Value(name string) (Value, error)
	// Open resolves a backslash separated path relative to this key.
	Open(path string) (Key, error)
}

// Identified is implemented by keys backed by an NK record. Keys with equal
// IDs refer to the same record.
type Identified interface {
	ID() types.NodeID
}

// Value is a registry value handle.
type Value interface {
	Name() (string, error)
	Type() (types.RegType, error)
	// Data returns the decoded payload: string for REG_SZ and REG_EXPAND_SZ,
	// []string for REG_MULTI_SZ, uint32 for REG_DWORD and REG_DWORD_BE,
	// uint64 for REG_QWORD, and the raw []byte for everything else.
	Data() (any, error)
	Bytes() ([]byte, error)
}

// Tree is an opened hive.
type Tree interface {
	Root() (Key, error)
	Close() error
}

// Source is a named hive that is opened on demand.
type Source interface {
	// Name is the hive's file name, e.g. SYSTEM.
	Name() string
	Open() (Tree, error)
}

// Hive is an opened hive file.
type Hive struct {
	r    types.Reader
	name string
}

// Open opens the hive at path with default options.
func Open(path string) (*Hive, error) {
	return OpenWith(path, types.OpenOptions{})
}

// OpenWith opens the hive at path.
func OpenWith(path string, opts types.OpenOptions) (*Hive, error) {
	r, err := reader.Open(path, opts)
	if err != nil {
		return nil, err
	}
	return &Hive{r: r, name: filepath.Base(path)}, nil
}

// OpenBytes opens an in-memory hive image.
func OpenBytes(name string, buf []byte, opts types.OpenOptions) (*Hive, error) {
	r, err := reader.OpenBytes(buf, opts)
	if err != nil {
		return nil, err
	}
	return &Hive{r: r, name: name}, nil
}

// Name returns the file name the hive was opened from.
func (h *Hive) Name() string { return h.name }

// Info returns header metadata.
func (h *Hive) Info() types.HiveInfo { return h.r.Info() }

// Close releases the mapping. Keys obtained from the hive become unusable.
func (h *Hive) Close() error { return h.r.Close() }

// Root returns the root key.
func (h *Hive) Root() (Key, error) {
	id, err := h.r.Root()
	if err != nil {
		return nil, err
	}
	name, err := h.r.KeyName(id)
	if err != nil {
		return nil, fmt.Errorf("root key name: %w", err)
	}
	return &regKey{r: h.r, id: id, name: name}, nil
}

type fileSource struct {
	path string
	opts types.OpenOptions
}

// FileSource returns a Source backed by the hive file at path.
func FileSource(path string, opts types.OpenOptions) Source {
	return fileSource{path: path, opts: opts}
}

func (s fileSource) Name() string { return filepath.Base(s.path) }

func (s fileSource) Open() (Tree, error) {
	h, err := OpenWith(s.path, s.opts)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Named returns the sources whose name equals name, ignoring case, in their
// original order.
func Named(sources []Source, name string) []Source {
	var out []Source
	for _, s := range sources {
		if strings.EqualFold(s.Name(), name) {
			out = append(out, s)
		}
	}
	return out
}
