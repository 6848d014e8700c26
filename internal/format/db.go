package format

import (
	"bytes"
	"fmt"
)

// DBRecord is a big-data record used for values larger than one cell.
//
//	Offset  Size  Field
//	0x00    2     'd' 'b'
//	0x02    2     Number of data blocks
//	0x04    4     Offset of the blocklist cell
//
// The blocklist is an array of cell offsets; concatenating the blocks (each
// minus its trailing 4 bytes) yields the value, truncated to the VK length.
type DBRecord struct {
	NumBlocks       uint16
	BlocklistOffset uint32
}

// IsDBRecord checks for the "db" signature.
func IsDBRecord(b []byte) bool {
	return len(b) >= SignatureSize && bytes.Equal(b[:SignatureSize], DBSignature)
}

// DecodeDB decodes a db record payload.
func DecodeDB(b []byte) (DBRecord, error) {
	if len(b) < DBMinSize {
		return DBRecord{}, fmt.Errorf("db: %w (need %d bytes, have %d)", ErrTruncated, DBMinSize, len(b))
	}
	if !IsDBRecord(b) {
		return DBRecord{}, fmt.Errorf("db: %w", ErrSignatureMismatch)
	}
	n, _ := readU16(b, DBCountOffset)
	list, _ := readU32(b, DBListOffset)
	return DBRecord{NumBlocks: n, BlocklistOffset: list}, nil
}

// DecodeBlocklist returns the data block offsets listed by a db record.
func DecodeBlocklist(b []byte, db DBRecord) ([]uint32, error) {
	out, err := offsets(b, int(db.NumBlocks), OffsetFieldSize)
	if err != nil {
		return nil, fmt.Errorf("db blocklist: %w", err)
	}
	return out, nil
}
