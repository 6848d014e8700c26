package format

import (
	"bytes"
	"fmt"
)

// NKRecord holds the fields of a key node record that traversal needs.
//
//	Offset  Size  Field
//	0x00    2     'n' 'k'
//	0x02    2     Flags (0x20 => name stored as Windows-1252)
//	0x04    8     Last write time (FILETIME)
//	0x10    4     Parent cell offset
//	0x14    4     Number of subkeys
//	0x1C    4     Offset to subkey list
//	0x24    4     Number of values
//	0x28    4     Offset to value list
//	0x48    2     Name length in bytes
//	0x4C    n     Name bytes
type NKRecord struct {
	Flags            uint16
	LastWriteRaw     uint64
	ParentOffset     uint32
	SubkeyCount      uint32
	SubkeyListOffset uint32
	ValueCount       uint32
	ValueListOffset  uint32
	NameRaw          []byte
}

// NameIsCompressed returns true when the name is stored in 8-bit form.
func (nk NKRecord) NameIsCompressed() bool {
	return nk.Flags&NKFlagCompressedName != 0
}

// HasSubkeys reports whether the record points at a non-empty subkey list.
func (nk NKRecord) HasSubkeys() bool {
	return nk.SubkeyCount > 0 && nk.SubkeyListOffset != InvalidOffset
}

// HasValues reports whether the record points at a non-empty value list.
func (nk NKRecord) HasValues() bool {
	return nk.ValueCount > 0 && nk.ValueListOffset != InvalidOffset
}

// DecodeNK decodes an NK record payload.
func DecodeNK(b []byte) (NKRecord, error) {
	if len(b) < NKMinSize {
		return NKRecord{}, fmt.Errorf("nk: %w (have %d, need %d)", ErrTruncated, len(b), NKMinSize)
	}
	if !bytes.Equal(b[:SignatureSize], NKSignature) {
		return NKRecord{}, fmt.Errorf("nk: %w", ErrSignatureMismatch)
	}

	// Fixed fields are covered by the NKMinSize check.
	flags, _ := readU16(b, NKFlagsOffset)
	lastWrite, _ := readU64(b, NKLastWriteOffset)
	parent, _ := readU32(b, NKParentOffset)
	subkeyCount, _ := readU32(b, NKSubkeyCountOffset)
	subkeyList, _ := readU32(b, NKSubkeyListOffset)
	valueCount, _ := readU32(b, NKValueCountOffset)
	valueList, _ := readU32(b, NKValueListOffset)
	nameLen, _ := readU16(b, NKNameLenOffset)

	if subkeyCount > MaxSubkeyCount {
		return NKRecord{}, fmt.Errorf("nk subkey count %d: %w", subkeyCount, ErrSanityLimit)
	}
	if valueCount > MaxValueCount {
		return NKRecord{}, fmt.Errorf("nk value count %d: %w", valueCount, ErrSanityLimit)
	}
	name, ok := Slice(b, NKNameOffset, int(nameLen))
	if !ok {
		return NKRecord{}, fmt.Errorf("nk name: %w (need %d bytes, have %d)",
			ErrTruncated, nameLen, len(b)-NKNameOffset)
	}

	return NKRecord{
		Flags:            flags,
		LastWriteRaw:     lastWrite,
		ParentOffset:     parent,
		SubkeyCount:      subkeyCount,
		SubkeyListOffset: subkeyList,
		ValueCount:       valueCount,
		ValueListOffset:  valueList,
		NameRaw:          name,
	}, nil
}
