package format

import (
	"encoding/binary"
	"fmt"
	"math"
)

func readU16(b []byte, off int) (uint16, error) {
	if !has(b, off, 2) {
		return 0, fmt.Errorf("u16 at %#x: %w", off, ErrTruncated)
	}
	return binary.LittleEndian.Uint16(b[off:]), nil
}

func readU32(b []byte, off int) (uint32, error) {
	if !has(b, off, 4) {
		return 0, fmt.Errorf("u32 at %#x: %w", off, ErrTruncated)
	}
	return binary.LittleEndian.Uint32(b[off:]), nil
}

func readU64(b []byte, off int) (uint64, error) {
	if !has(b, off, 8) {
		return 0, fmt.Errorf("u64 at %#x: %w", off, ErrTruncated)
	}
	return binary.LittleEndian.Uint64(b[off:]), nil
}

// has reports whether b[off:off+n] is within bounds without overflowing.
func has(b []byte, off, n int) bool {
	if off < 0 || n < 0 || off > len(b) {
		return false
	}
	if n > math.MaxInt-off {
		return false
	}
	return off+n <= len(b)
}

// Slice returns b[off:off+n] when it fits.
func Slice(b []byte, off, n int) ([]byte, bool) {
	if !has(b, off, n) {
		return nil, false
	}
	return b[off : off+n], true
}

// offsets decodes count little-endian uint32 values spaced stride bytes apart.
func offsets(b []byte, count, stride int) ([]uint32, error) {
	if count == 0 {
		return nil, nil
	}
	if count < 0 || stride <= 0 || count > math.MaxInt/stride {
		return nil, fmt.Errorf("offset array: count=%d stride=%d: %w", count, stride, ErrSanityLimit)
	}
	if !has(b, 0, count*stride) {
		return nil, ErrTruncated
	}
	out := make([]uint32, count)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[i*stride:])
	}
	return out, nil
}
