// Package format decodes the on-disk records of a Windows registry hive.
// Every decoder validates bounds before touching the buffer and reports
// problems as wrapped sentinel errors; none of them allocate beyond the
// returned offset slices.
package format

// Signatures.
var (
	REGFSignature = []byte{'r', 'e', 'g', 'f'}
	HBINSignature = []byte{'h', 'b', 'i', 'n'}
	NKSignature   = []byte{'n', 'k'}
	VKSignature   = []byte{'v', 'k'}
	LFSignature   = []byte{'l', 'f'}
	LHSignature   = []byte{'l', 'h'}
	LISignature   = []byte{'l', 'i'}
	RISignature   = []byte{'r', 'i'}
	DBSignature   = []byte{'d', 'b'}
)

// Structural sizes.
const (
	HeaderSize      = 4096   // REGF base block
	HBINHeaderSize  = 0x20   // per-bin header
	HBINAlignment   = 0x1000 // bins are multiples of 4 KiB
	CellHeaderSize  = 4      // signed size prefix
	SignatureSize   = 2      // record tag inside a cell
	OffsetFieldSize = 4      // one HCELL_INDEX
	InvalidOffset   = 0xFFFFFFFF
)

// REGF header fields.
const (
	REGFPrimarySeqOffset   = 0x004
	REGFSecondarySeqOffset = 0x008
	REGFTimeStampOffset    = 0x00C
	REGFMajorVersionOffset = 0x014
	REGFMinorVersionOffset = 0x018
	REGFRootCellOffset     = 0x024
	REGFDataSizeOffset     = 0x028
)

// HBIN header fields.
const (
	HBINFileOffsetField = 0x04
	HBINSizeOffset      = 0x08
)

// NK field offsets within the record payload (payload start == "nk").
const (
	NKFlagsOffset        = 0x02
	NKLastWriteOffset    = 0x04
	NKParentOffset       = 0x10
	NKSubkeyCountOffset  = 0x14
	NKSubkeyListOffset   = 0x1C
	NKValueCountOffset   = 0x24
	NKValueListOffset    = 0x28
	NKNameLenOffset      = 0x48
	NKNameOffset         = 0x4C
	NKMinSize            = NKNameOffset
	NKFlagCompressedName = 0x20
)

// VK field offsets.
const (
	VKNameLenOffset  = 0x02
	VKDataLenOffset  = 0x04
	VKDataOffOffset  = 0x08
	VKTypeOffset     = 0x0C
	VKFlagsOffset    = 0x10
	VKNameOffset     = 0x14
	VKMinSize        = VKNameOffset
	VKFlagASCIIName  = 0x0001
	VKDataInlineBit  = 0x80000000
	VKDataLengthMask = 0x7FFFFFFF
)

// Index list (li/lf/lh/ri) layout.
const (
	ListHeaderSize = 4 // signature + uint16 count
	LIEntrySize    = 4
	LFEntrySize    = 8 // offset + name hint/hash
)

// Big data (db) layout.
const (
	DBCountOffset  = 0x02
	DBListOffset   = 0x04
	DBMinSize      = 0x0C
	DBBlockPadding = 4 // trailing bytes after each data block
)

// Sanity limits applied while decoding untrusted records.
const (
	MaxSubkeyCount  = 1 << 20
	MaxValueCount   = 1 << 20
	MaxNameLen      = 0x7FFF
	MaxValueDataLen = 1 << 30
)
