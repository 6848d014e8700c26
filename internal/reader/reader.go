// Package reader provides the concrete types.Reader implementation over a
// memory-mapped hive. Handles are cell offsets; nothing is decoded until a
// caller asks for it.
package reader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/joshuapare/hiveartifacts/internal/format"
	"github.com/joshuapare/hiveartifacts/internal/mmfile"
	"github.com/joshuapare/hiveartifacts/internal/wintime"
	"github.com/joshuapare/hiveartifacts/pkg/types"
)

const (
	defaultMaxCellSize = 64 << 20
	maxIndexDepth      = 8 // ri lists never nest in practice
)

// Open maps the hive at path and returns an implementation of types.Reader.
// A missing file keeps its fs.ErrNotExist cause so callers can tell it apart
// from types.ErrNotHive.
func Open(path string, opts types.OpenOptions) (types.Reader, error) {
	data, unmap, err := mmfile.Map(path)
	if err != nil {
		return nil, &types.Error{Kind: types.ErrKindState, Msg: "open hive " + path, Err: err}
	}
	r, err := newReader(data, unmap, opts)
	if err != nil {
		_ = unmap()
		return nil, err
	}
	return r, nil
}

// OpenBytes creates a reader backed by the provided buffer.
func OpenBytes(buf []byte, opts types.OpenOptions) (types.Reader, error) {
	return newReader(buf, nil, opts)
}

type reader struct {
	buf    []byte
	unmap  func() error
	opts   types.OpenOptions
	head   format.Header
	closed bool
	bins   []binSpan // absolute [start, end) of every hbin, in file order
}

type binSpan struct {
	start, end int
}

func newReader(buf []byte, unmap func() error, opts types.OpenOptions) (*reader, error) {
	head, err := format.ParseHeader(buf)
	if err != nil {
		return nil, wrapFormatErr(err)
	}
	if opts.MaxCellSize <= 0 {
		opts.MaxCellSize = defaultMaxCellSize
	}
	r := &reader{buf: buf, unmap: unmap, opts: opts, head: head}
	if err := r.indexBins(); err != nil {
		return nil, err
	}
	return r, nil
}

// indexBins validates every hbin header up front so later cell reads only
// need a range lookup.
func (r *reader) indexBins() error {
	off := format.HeaderSize
	end := format.HeaderSize + int(r.head.HiveBinsDataSize)
	if end > len(r.buf) || r.head.HiveBinsDataSize == 0 {
		end = len(r.buf)
	}
	for off < end {
		_, next, err := format.NextHBIN(r.buf, off)
		if err != nil {
			if len(r.bins) > 0 && r.opts.Tolerant {
				// Trailing garbage after the last good bin.
				break
			}
			return wrapFormatErr(err)
		}
		r.bins = append(r.bins, binSpan{start: off, end: next})
		off = next
	}
	if len(r.bins) == 0 {
		return &types.Error{Kind: types.ErrKindCorrupt, Msg: "hive has no bins", Err: types.ErrCorrupt}
	}
	return nil
}

func (r *reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.unmap != nil {
		return r.unmap()
	}
	return nil
}

func (r *reader) ensureOpen() error {
	if r.closed {
		return types.ErrClosed
	}
	return nil
}

func (r *reader) Info() types.HiveInfo {
	lw, _ := wintime.FiletimeToTime(r.head.LastWriteRaw)
	return types.HiveInfo{
		PrimarySequence:   r.head.PrimarySequence,
		SecondarySequence: r.head.SecondarySequence,
		LastWrite:         lw,
		MajorVersion:      r.head.MajorVersion,
		MinorVersion:      r.head.MinorVersion,
		RootCellOffset:    r.head.RootCellOffset,
		HiveBinsDataSize:  r.head.HiveBinsDataSize,
	}
}

func (r *reader) Root() (types.NodeID, error) {
	if err := r.ensureOpen(); err != nil {
		return 0, err
	}
	id := types.NodeID(r.head.RootCellOffset)
	if _, err := r.nk(id); err != nil {
		return 0, fmt.Errorf("root key: %w", err)
	}
	return id, nil
}

func (r *reader) KeyName(id types.NodeID) (string, error) {
	if err := r.ensureOpen(); err != nil {
		return "", err
	}
	nk, err := r.nk(id)
	if err != nil {
		return "", err
	}
	name, err := DecodeKeyName(nk)
	if err != nil {
		return "", wrapFormatErr(err)
	}
	return name, nil
}

func (r *reader) KeyTimestamp(id types.NodeID) (time.Time, error) {
	if err := r.ensureOpen(); err != nil {
		return time.Time{}, err
	}
	nk, err := r.nk(id)
	if err != nil {
		return time.Time{}, err
	}
	t, err := wintime.FiletimeToTime(nk.LastWriteRaw)
	if err != nil {
		return time.Time{}, &types.Error{Kind: types.ErrKindCorrupt, Msg: "key timestamp", Err: err}
	}
	return t, nil
}

func (r *reader) Subkeys(id types.NodeID) ([]types.NodeID, error) {
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	nk, err := r.nk(id)
	if err != nil {
		return nil, err
	}
	if !nk.HasSubkeys() {
		return nil, nil
	}
	list, err := r.subkeyList(nk.SubkeyListOffset, nk.SubkeyCount, 0)
	if err != nil {
		return nil, err
	}
	out := make([]types.NodeID, len(list))
	for i, off := range list {
		out[i] = types.NodeID(off)
	}
	return out, nil
}

func (r *reader) Values(id types.NodeID) ([]types.ValueID, error) {
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	nk, err := r.nk(id)
	if err != nil {
		return nil, err
	}
	if !nk.HasValues() {
		return nil, nil
	}
	c, err := r.cell(nk.ValueListOffset)
	if err != nil {
		return nil, err
	}
	list, err := format.DecodeValueList(c.Data, nk.ValueCount)
	if err != nil {
		return nil, wrapFormatErr(err)
	}
	out := make([]types.ValueID, len(list))
	for i, off := range list {
		out[i] = types.ValueID(off)
	}
	return out, nil
}

func (r *reader) ValueName(id types.ValueID) (string, error) {
	if err := r.ensureOpen(); err != nil {
		return "", err
	}
	vk, err := r.vk(id)
	if err != nil {
		return "", err
	}
	name, err := DecodeValueName(vk)
	if err != nil {
		return "", wrapFormatErr(err)
	}
	return name, nil
}

func (r *reader) ValueType(id types.ValueID) (types.RegType, error) {
	if err := r.ensureOpen(); err != nil {
		return 0, err
	}
	vk, err := r.vk(id)
	if err != nil {
		return 0, err
	}
	return types.RegType(vk.Type), nil
}

// ValueBytes returns a copy of the raw payload.
func (r *reader) ValueBytes(id types.ValueID) ([]byte, error) {
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	_, data, err := r.value(id)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (r *reader) ValueString(id types.ValueID) (string, error) {
	if err := r.ensureOpen(); err != nil {
		return "", err
	}
	vk, data, err := r.value(id)
	if err != nil {
		return "", err
	}
	switch types.RegType(vk.Type) {
	case types.REG_SZ, types.REG_EXPAND_SZ, types.REG_LINK:
		s, err := DecodeUTF16(data)
		if err != nil {
			return "", wrapFormatErr(err)
		}
		return s, nil
	default:
		return "", types.ErrTypeMismatch
	}
}

func (r *reader) ValueStrings(id types.ValueID) ([]string, error) {
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	vk, data, err := r.value(id)
	if err != nil {
		return nil, err
	}
	if types.RegType(vk.Type) != types.REG_MULTI_SZ {
		return nil, types.ErrTypeMismatch
	}
	out, err := DecodeMultiString(data)
	if err != nil {
		return nil, wrapFormatErr(err)
	}
	return out, nil
}

func (r *reader) ValueDWORD(id types.ValueID) (uint32, error) {
	if err := r.ensureOpen(); err != nil {
		return 0, err
	}
	vk, data, err := r.value(id)
	if err != nil {
		return 0, err
	}
	t := types.RegType(vk.Type)
	if t != types.REG_DWORD && t != types.REG_DWORD_BE {
		return 0, types.ErrTypeMismatch
	}
	if len(data) < 4 {
		return 0, &types.Error{Kind: types.ErrKindCorrupt, Msg: "value too short for DWORD", Err: types.ErrCorrupt}
	}
	if t == types.REG_DWORD_BE {
		return binary.BigEndian.Uint32(data), nil
	}
	return binary.LittleEndian.Uint32(data), nil
}

func (r *reader) ValueQWORD(id types.ValueID) (uint64, error) {
	if err := r.ensureOpen(); err != nil {
		return 0, err
	}
	vk, data, err := r.value(id)
	if err != nil {
		return 0, err
	}
	if types.RegType(vk.Type) != types.REG_QWORD {
		return 0, types.ErrTypeMismatch
	}
	if len(data) < 8 {
		return 0, &types.Error{Kind: types.ErrKindCorrupt, Msg: "value too short for QWORD", Err: types.ErrCorrupt}
	}
	return binary.LittleEndian.Uint64(data), nil
}

// Internal helpers ----------------------------------------------------------

func (r *reader) nk(id types.NodeID) (format.NKRecord, error) {
	c, err := r.cell(uint32(id))
	if err != nil {
		return format.NKRecord{}, err
	}
	nk, err := format.DecodeNK(c.Data)
	if err != nil {
		return format.NKRecord{}, wrapFormatErr(err)
	}
	return nk, nil
}

func (r *reader) vk(id types.ValueID) (format.VKRecord, error) {
	c, err := r.cell(uint32(id))
	if err != nil {
		return format.VKRecord{}, err
	}
	vk, err := format.DecodeVK(c.Data)
	if err != nil {
		return format.VKRecord{}, wrapFormatErr(err)
	}
	return vk, nil
}

// subkeyList flattens an index cell into NK offsets, following ri lists.
func (r *reader) subkeyList(offset, expected uint32, depth int) ([]uint32, error) {
	if depth > maxIndexDepth {
		return nil, &types.Error{Kind: types.ErrKindCorrupt, Msg: "subkey index nested too deeply", Err: types.ErrCorrupt}
	}
	c, err := r.cell(offset)
	if err != nil {
		return nil, err
	}
	list, kind, err := format.DecodeSubkeyList(c.Data, expected)
	if err != nil {
		return nil, wrapFormatErr(err)
	}
	if kind != format.ListRI {
		return list, nil
	}
	out := make([]uint32, 0, expected)
	for _, sub := range list {
		leaves, err := r.subkeyList(sub, 0, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, leaves...)
	}
	return out, nil
}

// value resolves the payload of a VK, whether inline, in a single data cell,
// or split across db blocks. The returned slice may alias the hive buffer.
func (r *reader) value(id types.ValueID) (format.VKRecord, []byte, error) {
	vk, err := r.vk(id)
	if err != nil {
		return format.VKRecord{}, nil, err
	}
	length := vk.Length()
	if vk.DataInline() {
		if length > format.OffsetFieldSize {
			return format.VKRecord{}, nil, &types.Error{Kind: types.ErrKindCorrupt, Msg: "inline length exceeds field", Err: types.ErrCorrupt}
		}
		var inline [format.OffsetFieldSize]byte
		binary.LittleEndian.PutUint32(inline[:], vk.DataOffset)
		return vk, append([]byte(nil), inline[:length]...), nil
	}
	if length == 0 {
		return vk, nil, nil
	}
	if length > r.opts.MaxCellSize {
		return format.VKRecord{}, nil, &types.Error{Kind: types.ErrKindCorrupt, Msg: "value data exceeds MaxCellSize", Err: types.ErrCorrupt}
	}
	dc, err := r.cell(vk.DataOffset)
	if err != nil {
		return format.VKRecord{}, nil, fmt.Errorf("value data: %w", err)
	}
	if format.IsDBRecord(dc.Data) && length > len(dc.Data) {
		data, err := r.bigData(dc.Data, length)
		if err != nil {
			return format.VKRecord{}, nil, err
		}
		return vk, data, nil
	}
	if len(dc.Data) < length {
		if !r.opts.Tolerant {
			return format.VKRecord{}, nil, &types.Error{Kind: types.ErrKindCorrupt, Msg: "value data truncated", Err: types.ErrCorrupt}
		}
		length = len(dc.Data)
	}
	return vk, dc.Data[:length], nil
}

// bigData concatenates db blocks up to want bytes. Each block carries four
// bytes of trailing padding that are not part of the value.
func (r *reader) bigData(dbPayload []byte, want int) ([]byte, error) {
	db, err := format.DecodeDB(dbPayload)
	if err != nil {
		return nil, wrapFormatErr(err)
	}
	lc, err := r.cell(db.BlocklistOffset)
	if err != nil {
		return nil, fmt.Errorf("db blocklist: %w", err)
	}
	blocks, err := format.DecodeBlocklist(lc.Data, db)
	if err != nil {
		return nil, wrapFormatErr(err)
	}
	out := make([]byte, 0, want)
	for i, off := range blocks {
		bc, err := r.cell(off)
		if err != nil {
			return nil, fmt.Errorf("db block %d: %w", i, err)
		}
		chunk := bc.Data
		if len(chunk) > format.DBBlockPadding {
			chunk = chunk[:len(chunk)-format.DBBlockPadding]
		}
		if rest := want - len(out); len(chunk) > rest {
			chunk = chunk[:rest]
		}
		out = append(out, chunk...)
		if len(out) == want {
			return out, nil
		}
	}
	if r.opts.Tolerant {
		return out, nil
	}
	return nil, &types.Error{
		Kind: types.ErrKindCorrupt,
		Msg:  fmt.Sprintf("db data size mismatch: expected %d bytes, got %d", want, len(out)),
		Err:  types.ErrCorrupt,
	}
}

// cell parses the cell at a bin-relative offset. The cell may not extend
// past the end of its bin.
func (r *reader) cell(offset uint32) (format.Cell, error) {
	abs := format.HeaderSize + int(offset)
	span, ok := r.binFor(abs)
	if !ok || offset == format.InvalidOffset {
		return format.Cell{}, &types.Error{
			Kind: types.ErrKindCorrupt,
			Msg:  fmt.Sprintf("cell offset %#x out of range", offset),
			Err:  types.ErrCorrupt,
		}
	}
	if abs < span.start+format.HBINHeaderSize {
		return format.Cell{}, &types.Error{
			Kind: types.ErrKindCorrupt,
			Msg:  fmt.Sprintf("cell offset %#x points into a bin header", offset),
			Err:  types.ErrCorrupt,
		}
	}
	c, err := format.ParseCell(r.buf[abs:span.end])
	if err != nil {
		return format.Cell{}, wrapFormatErr(fmt.Errorf("cell %#x: %w", offset, err))
	}
	if c.Free && !r.opts.Tolerant {
		return format.Cell{}, wrapFormatErr(fmt.Errorf("cell %#x: %w", offset, format.ErrFreeCell))
	}
	if c.Size > r.opts.MaxCellSize {
		return format.Cell{}, &types.Error{Kind: types.ErrKindCorrupt, Msg: "cell exceeds MaxCellSize", Err: types.ErrCorrupt}
	}
	return c, nil
}

func (r *reader) binFor(abs int) (binSpan, bool) {
	// Bins are contiguous and sorted; binary search keeps lookups cheap on
	// large SOFTWARE hives.
	lo, hi := 0, len(r.bins)
	for lo < hi {
		mid := (lo + hi) / 2
		switch b := r.bins[mid]; {
		case abs < b.start:
			hi = mid
		case abs >= b.end:
			lo = mid + 1
		default:
			return b, true
		}
	}
	return binSpan{}, false
}

// Error helpers --------------------------------------------------------------

func wrapFormatErr(err error) error {
	switch {
	case errors.Is(err, format.ErrSignatureMismatch):
		return &types.Error{Kind: types.ErrKindFormat, Msg: err.Error(), Err: types.ErrNotHive}
	case errors.Is(err, format.ErrTruncated):
		return &types.Error{Kind: types.ErrKindFormat, Msg: "hive truncated", Err: err}
	case errors.Is(err, format.ErrFreeCell):
		return &types.Error{Kind: types.ErrKindCorrupt, Msg: "cell marked free", Err: err}
	case errors.Is(err, format.ErrUnsupported):
		return &types.Error{Kind: types.ErrKindUnsupported, Msg: err.Error(), Err: types.ErrUnsupported}
	default:
		return &types.Error{Kind: types.ErrKindCorrupt, Msg: err.Error(), Err: err}
	}
}
