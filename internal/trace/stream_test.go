package trace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"SketchSpectra/pkg/flowkey"
)

func TestStreamRoundTrip(t *testing.T) {
	f, err := NewDataFormat(spec([]string{"flowkey", "length", "padding", "timestamp"}, []int{4, 4, 2, 2}))
	require.NoError(t, err)
	require.Equal(t, 12, f.RecordLen())

	keys := []uint32{0x1F1F1, 0x2F2F2, 0x1F1F1, 0x3F3F3, 0x4F4F4,
		0x1F1F1, 0x2F2F2, 0x3F3F3, 0x5F5F5, 0x1F1F1}
	lengths := []int64{1, 2, 4, 8, 16, 32, 64, 128, 256, 512}

	recs := make([]Record, len(keys))
	for i := range keys {
		recs[i] = Record{Key: flowkey.From1Tuple(keys[i]), Timestamp: int64(i), Length: lengths[i]}
	}

	path := filepath.Join(t.TempDir(), "records.bin")
	require.NoError(t, Write(path, f, recs))

	s, err := Load(path, f)
	require.NoError(t, err)
	require.False(t, s.Empty())
	require.Equal(t, 10, s.Size())

	for i, r := range s.Records() {
		require.Equal(t, lengths[i], r.Length)
		require.Equal(t, int64(i), r.Timestamp)
		ip, err := r.Key.IP()
		require.NoError(t, err)
		require.Equal(t, keys[i], ip)
	}

	_, err = s.Slice(0, 11)
	require.Error(t, err)
	part, err := s.Slice(2, 5)
	require.NoError(t, err)
	require.Len(t, part, 3)
}

func TestStreamRejectsGarbledFile(t *testing.T) {
	f, err := NewDataFormat(spec([]string{"flowkey", "length"}, []int{4, 4}))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "garbled.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 13), 0644))

	_, err = Load(path, f)
	require.True(t, errors.Is(err, ErrBadData))
}

func TestStreamMissingFile(t *testing.T) {
	f, err := NewDataFormat(spec([]string{"flowkey"}, []int{4}))
	require.NoError(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "nope.bin"), f)
	require.True(t, errors.Is(err, ErrBadData))
}
