package format

import (
	"bytes"
	"fmt"
)

// Header is the subset of the REGF base block needed to walk a hive.
//
//	Offset  Size  Description
//	------  ----  ----------------------------------------------
//	 0x000   4    'r' 'e' 'g' 'f'
//	 0x004   4    Primary sequence number
//	 0x008   4    Secondary sequence number
//	 0x00C   8    Last write timestamp (FILETIME)
//	 0x014   4    Major version
//	 0x018   4    Minor version
//	 0x024   4    Root cell offset (relative to first HBIN)
//	 0x028   4    Total size of HBIN data
type Header struct {
	PrimarySequence   uint32
	SecondarySequence uint32
	LastWriteRaw      uint64
	MajorVersion      uint32
	MinorVersion      uint32
	RootCellOffset    uint32
	HiveBinsDataSize  uint32
}

// ParseHeader validates the signature and extracts the header fields.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("regf header: %w", ErrTruncated)
	}
	if !bytes.Equal(b[:len(REGFSignature)], REGFSignature) {
		return Header{}, fmt.Errorf("regf header: %w", ErrSignatureMismatch)
	}
	// The length check above covers every fixed field, so these reads cannot fail.
	pseq, _ := readU32(b, REGFPrimarySeqOffset)
	sseq, _ := readU32(b, REGFSecondarySeqOffset)
	stamp, _ := readU64(b, REGFTimeStampOffset)
	major, _ := readU32(b, REGFMajorVersionOffset)
	minor, _ := readU32(b, REGFMinorVersionOffset)
	root, _ := readU32(b, REGFRootCellOffset)
	size, _ := readU32(b, REGFDataSizeOffset)
	return Header{
		PrimarySequence:   pseq,
		SecondarySequence: sseq,
		LastWriteRaw:      stamp,
		MajorVersion:      major,
		MinorVersion:      minor,
		RootCellOffset:    root,
		HiveBinsDataSize:  size,
	}, nil
}

// Dirty reports whether the sequence numbers disagree, which means the hive
// was not cleanly flushed and pending changes live in transaction logs.
func (h Header) Dirty() bool {
	return h.PrimarySequence != h.SecondarySequence
}
