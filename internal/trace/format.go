package trace

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"SketchSpectra/pkg/flowkey"
)

// ErrBadFormat reports an ill-formed declarative record layout.
var ErrBadFormat = errors.New("trace: unknown format")

// field indices inside DataFormat.
const (
	fieldKey = iota
	fieldTimestamp
	fieldLength
	fieldEnd
)

// DataFormat maps a fixed record size to field offsets. It is built from
// the 2-row `format` array in the configuration: field names in the first
// row, byte widths in the second.
//
//	format = [["flowkey", "timestamp", "length", "padding"], [13, 8, 2, 1]]
//
// `flowkey` is required exactly once with width 4, 8 or 13; `timestamp`
// and `length` at most once with width 1, 2, 4 or 8; `padding` any
// positive width. Integer fields are little-endian; 1-, 2- and 4-byte
// fields read zero-extended, 8-byte fields as signed.
type DataFormat struct {
	offset [fieldEnd]int
	length [fieldEnd]int
	total  int
}

// NewDataFormat validates a format declaration and computes field offsets.
func NewDataFormat(spec [][]interface{}) (*DataFormat, error) {
	f := &DataFormat{}
	for i := 0; i < fieldEnd; i++ {
		f.offset[i] = -1
		f.length[i] = -1
	}

	if len(spec) != 2 || len(spec[0]) != len(spec[1]) {
		return nil, errors.Wrapf(ErrBadFormat, "want 2 rows of equal size, got %d", len(spec))
	}

	off := 0
	for i := range spec[0] {
		name, ok := spec[0][i].(string)
		if !ok {
			return nil, errors.Wrapf(ErrBadFormat, "field name %v is not a string", spec[0][i])
		}
		width, ok := asInt(spec[1][i])
		if !ok {
			return nil, errors.Wrapf(ErrBadFormat, "field width %v is not an integer", spec[1][i])
		}

		switch name {
		case "flowkey":
			if f.offset[fieldKey] >= 0 || !flowkey.ValidLen(width) {
				return nil, errors.Wrapf(ErrBadFormat, "flowkey of width %d", width)
			}
			f.offset[fieldKey], f.length[fieldKey] = off, width
		case "timestamp":
			if f.offset[fieldTimestamp] >= 0 || !validIntWidth(width) {
				return nil, errors.Wrapf(ErrBadFormat, "timestamp of width %d", width)
			}
			f.offset[fieldTimestamp], f.length[fieldTimestamp] = off, width
		case "length":
			if f.offset[fieldLength] >= 0 || !validIntWidth(width) {
				return nil, errors.Wrapf(ErrBadFormat, "length of width %d", width)
			}
			f.offset[fieldLength], f.length[fieldLength] = off, width
		case "padding":
			if width <= 0 {
				return nil, errors.Wrapf(ErrBadFormat, "padding of width %d", width)
			}
		default:
			return nil, errors.Wrapf(ErrBadFormat, "field %q", name)
		}
		off += width
	}

	if f.offset[fieldKey] < 0 {
		return nil, errors.Wrap(ErrBadFormat, "no flowkey field")
	}
	f.total = off
	return f, nil
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}

func validIntWidth(w int) bool {
	return w == 1 || w == 2 || w == 4 || w == 8
}

// RecordLen returns the total record size in bytes.
func (f *DataFormat) RecordLen() int { return f.total }

// KeyLen returns the declared flow-key length.
func (f *DataFormat) KeyLen() int { return f.length[fieldKey] }

// Read unscrambles one record from b. If rec already carries a key, its
// length must match the declared key length; a nil key is allocated.
func (f *DataFormat) Read(rec *Record, b []byte) error {
	if len(b) < f.total {
		return errors.Wrapf(ErrBadData, "record needs %d bytes, have %d", f.total, len(b))
	}
	if rec.Key == nil {
		rec.Key = make(flowkey.Key, f.length[fieldKey])
	} else if rec.Key.Len() != f.length[fieldKey] {
		return errors.Wrapf(ErrBadData, "key length %d does not match format key length %d",
			rec.Key.Len(), f.length[fieldKey])
	}

	copy(rec.Key, b[f.offset[fieldKey]:f.offset[fieldKey]+f.length[fieldKey]])
	if f.offset[fieldTimestamp] >= 0 {
		rec.Timestamp = readInt(b[f.offset[fieldTimestamp]:], f.length[fieldTimestamp])
	}
	if f.offset[fieldLength] >= 0 {
		rec.Length = readInt(b[f.offset[fieldLength]:], f.length[fieldLength])
	}
	return nil
}

// Write scrambles one record into b, zeroing padding. The record's key
// length must match the declared key length.
func (f *DataFormat) Write(rec *Record, b []byte) error {
	if len(b) < f.total {
		return errors.Wrapf(ErrBadData, "record needs %d bytes, have %d", f.total, len(b))
	}
	if rec.Key.Len() != f.length[fieldKey] {
		return errors.Wrapf(ErrBadData, "key length %d does not match format key length %d",
			rec.Key.Len(), f.length[fieldKey])
	}

	for i := 0; i < f.total; i++ {
		b[i] = 0
	}
	copy(b[f.offset[fieldKey]:], rec.Key)
	if f.offset[fieldTimestamp] >= 0 {
		writeInt(b[f.offset[fieldTimestamp]:], f.length[fieldTimestamp], rec.Timestamp)
	}
	if f.offset[fieldLength] >= 0 {
		writeInt(b[f.offset[fieldLength]:], f.length[fieldLength], rec.Length)
	}
	return nil
}

func readInt(b []byte, width int) int64 {
	switch width {
	case 1:
		return int64(b[0])
	case 2:
		return int64(binary.LittleEndian.Uint16(b))
	case 4:
		return int64(binary.LittleEndian.Uint32(b))
	default:
		return int64(binary.LittleEndian.Uint64(b))
	}
}

func writeInt(b []byte, width int, v int64) {
	switch width {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	default:
		binary.LittleEndian.PutUint64(b, uint64(v))
	}
}
