package format

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Cell is one allocation inside a bin.
//
//	Offset  Size  Description
//	0x00    4     Signed size. Negative => allocated, positive => free.
//	              The absolute value includes the 4-byte header.
//	0x04    ...   Payload. The first two bytes are the record tag.
type Cell struct {
	Size int    // total size including header
	Free bool   // true when the cell is marked as free
	Data []byte // payload, aliasing the input buffer
}

// Tag returns the two-byte record signature, or "" when the payload is too short.
func (c Cell) Tag() string {
	if len(c.Data) < SignatureSize {
		return ""
	}
	return string(c.Data[:SignatureSize])
}

// ParseCell decodes the cell that starts at b[0].
func ParseCell(b []byte) (Cell, error) {
	if len(b) < CellHeaderSize {
		return Cell{}, fmt.Errorf("cell: %w", ErrTruncated)
	}
	raw := int32(binary.LittleEndian.Uint32(b))
	if raw == 0 {
		return Cell{}, errors.New("cell: zero length")
	}
	size := int(raw)
	if raw < 0 {
		size = -size
	}
	if size < CellHeaderSize || size > len(b) {
		return Cell{}, fmt.Errorf("cell: size %d: %w", size, ErrTruncated)
	}
	return Cell{
		Size: size,
		Free: raw > 0,
		Data: b[CellHeaderSize:size],
	}, nil
}
