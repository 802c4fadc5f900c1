package trace

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func spec(names []string, widths []int) [][]interface{} {
	row0 := make([]interface{}, len(names))
	row1 := make([]interface{}, len(widths))
	for i := range names {
		row0[i] = names[i]
		row1[i] = int64(widths[i])
	}
	return [][]interface{}{row0, row1}
}

func TestDataFormatLayout(t *testing.T) {
	f, err := NewDataFormat(spec(
		[]string{"flowkey", "length", "padding", "timestamp", "padding"},
		[]int{8, 4, 1, 2, 1}))
	require.NoError(t, err)
	require.Equal(t, 16, f.RecordLen())
	require.Equal(t, 8, f.KeyLen())

	raw := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0x09, 0x0a, 0x0b, 0x0c, 0x00, 0x0e, 0x0f, 0x00}
	var rec Record
	require.NoError(t, f.Read(&rec, raw))

	out := make([]byte, 16)
	require.NoError(t, f.Write(&rec, out))
	require.True(t, bytes.Equal(raw, out))
}

func TestDataFormatLeadingFields(t *testing.T) {
	f, err := NewDataFormat(spec([]string{"length", "padding", "flowkey"}, []int{1, 2, 4}))
	require.NoError(t, err)
	require.Equal(t, 7, f.RecordLen())

	raw := []byte{0x01, 0x00, 0x00, 0x04, 0x05, 0x06, 0x07}
	var rec Record
	require.NoError(t, f.Read(&rec, raw))
	require.EqualValues(t, 1, rec.Length)
	require.Equal(t, []byte{0x04, 0x05, 0x06, 0x07}, []byte(rec.Key))

	out := make([]byte, 7)
	require.NoError(t, f.Write(&rec, out))
	require.True(t, bytes.Equal(raw, out))
}

func TestDataFormatRejects(t *testing.T) {
	cases := []struct {
		names  []string
		widths []int
	}{
		{[]string{"length", "padding"}, []int{2, 2}},            // no flowkey
		{[]string{"length", "flowkey"}, []int{2, 2}},            // bad key width
		{[]string{"length", "flowkey", "padding"}, []int{1, 4, 0}}, // zero padding
		{[]string{"length", "flowkey", "flowkey"}, []int{2, 4, 4}}, // duplicate key
		{[]string{"flowkey", "length", "length"}, []int{4, 2, 2}},  // duplicate length
		{[]string{"flowkey", "length"}, []int{4, 3}},               // bad int width
		{[]string{"flowkey", "mystery"}, []int{4, 2}},              // unknown field
	}
	for i, c := range cases {
		_, err := NewDataFormat(spec(c.names, c.widths))
		require.True(t, errors.Is(err, ErrBadFormat), "case %d", i)
	}
}

func TestDataFormatKeyLengthMismatch(t *testing.T) {
	f, err := NewDataFormat(spec([]string{"length", "flowkey"}, []int{2, 4}))
	require.NoError(t, err)

	rec := Record{Key: make([]byte, 8)}
	err = f.Read(&rec, make([]byte, 6))
	require.True(t, errors.Is(err, ErrBadData))

	err = f.Write(&rec, make([]byte, 6))
	require.True(t, errors.Is(err, ErrBadData))
}

func TestDataFormatSignedness(t *testing.T) {
	f, err := NewDataFormat(spec([]string{"flowkey", "timestamp", "length"}, []int{4, 8, 2}))
	require.NoError(t, err)

	rec := Record{Key: []byte{1, 2, 3, 4}, Timestamp: -5, Length: 0xFFFF}
	buf := make([]byte, f.RecordLen())
	require.NoError(t, f.Write(&rec, buf))

	var back Record
	require.NoError(t, f.Read(&back, buf))
	require.EqualValues(t, -5, back.Timestamp)   // 8-byte fields keep their sign
	require.EqualValues(t, 0xFFFF, back.Length) // narrower fields zero-extend
}
