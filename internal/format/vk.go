package format

import (
	"bytes"
	"fmt"
)

// VKRecord models a value record header. The payload lives either inside
// DataOffset (small values) or in a separate cell, possibly a db record.
//
//	Offset  Size  Field
//	0x00    2     'v' 'k'
//	0x02    2     Name length
//	0x04    4     Data length (high bit => inline)
//	0x08    4     Data offset or inline data
//	0x0C    4     Value type
//	0x10    2     Flags (0x1 => name stored as Windows-1252)
//	0x14    n     Name bytes
type VKRecord struct {
	DataLength uint32
	DataOffset uint32
	Type       uint32
	Flags      uint16
	NameRaw    []byte
}

// NameIsASCII reports whether the name is stored as 8-bit bytes.
func (vk VKRecord) NameIsASCII() bool {
	return vk.Flags&VKFlagASCIIName != 0
}

// DataInline reports whether the data is stored within the DataOffset field.
func (vk VKRecord) DataInline() bool {
	return vk.DataLength&VKDataInlineBit != 0
}

// Length is the payload length with the inline bit masked off.
func (vk VKRecord) Length() int {
	return int(vk.DataLength & VKDataLengthMask)
}

// DecodeVK decodes a VK record payload.
func DecodeVK(b []byte) (VKRecord, error) {
	if len(b) < VKMinSize {
		return VKRecord{}, fmt.Errorf("vk: %w (have %d, need %d)", ErrTruncated, len(b), VKMinSize)
	}
	if !bytes.Equal(b[:SignatureSize], VKSignature) {
		return VKRecord{}, fmt.Errorf("vk: %w", ErrSignatureMismatch)
	}

	nameLen, _ := readU16(b, VKNameLenOffset)
	dataLen, _ := readU32(b, VKDataLenOffset)
	dataOff, _ := readU32(b, VKDataOffOffset)
	valType, _ := readU32(b, VKTypeOffset)
	flags, _ := readU16(b, VKFlagsOffset)

	if n := dataLen & VKDataLengthMask; n > MaxValueDataLen {
		return VKRecord{}, fmt.Errorf("vk data len %d: %w", n, ErrSanityLimit)
	}
	name, ok := Slice(b, VKNameOffset, int(nameLen))
	if !ok {
		return VKRecord{}, fmt.Errorf("vk name: %w (need %d bytes, have %d)",
			ErrTruncated, nameLen, len(b)-VKNameOffset)
	}

	return VKRecord{
		DataLength: dataLen,
		DataOffset: dataOff,
		Type:       valType,
		Flags:      flags,
		NameRaw:    name,
	}, nil
}
