package format

import (
	"bytes"
	"fmt"
)

// ListKind identifies the flavour of a subkey index cell.
type ListKind int

const (
	ListUnknown ListKind = iota
	ListLI               // plain offsets
	ListLF               // offset + 4-byte name hint
	ListLH               // offset + 4-byte name hash
	ListRI               // offsets of other index cells
)

// ClassifyList inspects the signature of an index cell payload.
func ClassifyList(b []byte) ListKind {
	if len(b) < SignatureSize {
		return ListUnknown
	}
	sig := b[:SignatureSize]
	switch {
	case bytes.Equal(sig, LISignature):
		return ListLI
	case bytes.Equal(sig, LFSignature):
		return ListLF
	case bytes.Equal(sig, LHSignature):
		return ListLH
	case bytes.Equal(sig, RISignature):
		return ListRI
	default:
		return ListUnknown
	}
}

// DecodeSubkeyList returns the offsets stored in an index cell. For LI, LF
// and LH those are NK offsets; for RI they are offsets of further index
// cells which the caller must resolve. When expected is non-zero and smaller
// than the stored count, only the first expected entries are returned.
func DecodeSubkeyList(b []byte, expected uint32) ([]uint32, ListKind, error) {
	if len(b) < ListHeaderSize {
		return nil, ListUnknown, fmt.Errorf("subkey list: %w", ErrTruncated)
	}
	kind := ClassifyList(b)
	count, _ := readU16(b, SignatureSize)
	n := uint32(count)
	if kind != ListRI && expected != 0 && expected < n {
		n = expected
	}

	var stride int
	switch kind {
	case ListLI, ListRI:
		stride = LIEntrySize
	case ListLF, ListLH:
		stride = LFEntrySize
	default:
		return nil, ListUnknown, fmt.Errorf("subkey list %q: %w", b[:SignatureSize], ErrUnsupported)
	}
	out, err := offsets(b[ListHeaderSize:], int(n), stride)
	if err != nil {
		return nil, kind, fmt.Errorf("subkey list: %w", err)
	}
	return out, kind, nil
}

// DecodeValueList decodes the array of VK offsets referenced by an NK.
func DecodeValueList(b []byte, count uint32) ([]uint32, error) {
	out, err := offsets(b, int(count), OffsetFieldSize)
	if err != nil {
		return nil, fmt.Errorf("value list: %w", err)
	}
	return out, nil
}
