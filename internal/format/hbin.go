package format

import (
	"bytes"
	"fmt"
)

// HBIN describes a hive bin. Each bin starts with a 0x20-byte header:
//
//	Offset  Size  Field
//	0x00    4     'h' 'b' 'i' 'n'
//	0x04    4     Offset of this bin relative to the first bin
//	0x08    4     Size of the bin, multiple of 0x1000
type HBIN struct {
	FileOffset uint32
	Size       uint32
}

// NextHBIN validates the bin header at absolute offset off and returns it
// with the absolute offset of the following bin.
func NextHBIN(b []byte, off int) (HBIN, int, error) {
	head, ok := Slice(b, off, HBINHeaderSize)
	if !ok {
		return HBIN{}, 0, fmt.Errorf("hbin at %#x: %w", off, ErrTruncated)
	}
	if !bytes.Equal(head[:len(HBINSignature)], HBINSignature) {
		return HBIN{}, 0, fmt.Errorf("hbin at %#x: %w", off, ErrSignatureMismatch)
	}
	fileOff, _ := readU32(head, HBINFileOffsetField)
	size, _ := readU32(head, HBINSizeOffset)
	if size == 0 || size%HBINAlignment != 0 {
		return HBIN{}, 0, fmt.Errorf("hbin at %#x: invalid size %d", off, size)
	}
	next := off + int(size)
	if next > len(b) {
		return HBIN{}, 0, fmt.Errorf("hbin at %#x: %w", off, ErrTruncated)
	}
	return HBIN{FileOffset: fileOff, Size: size}, next, nil
}
