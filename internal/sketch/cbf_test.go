package sketch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"SketchSpectra/pkg/flowkey"
	"SketchSpectra/pkg/hash"
)

func TestCountingBloomFilterInsertLookup(t *testing.T) {
	hash.ResetSeed(10)
	cbf, err := NewCountingBloomFilter(1<<14, 3, 8)
	require.NoError(t, err)

	const n = 500
	for i := uint32(0); i < n; i++ {
		cbf.Insert(flowkey.From1Tuple(i))
	}
	for i := uint32(0); i < n; i++ {
		require.True(t, cbf.Lookup(flowkey.From1Tuple(i)), "inserted key %d missing", i)
	}
}

func TestCountingBloomFilterInsertIsIdempotent(t *testing.T) {
	hash.ResetSeed(11)
	cbf, err := NewCountingBloomFilter(1<<12, 3, 8)
	require.NoError(t, err)

	k := flowkey.From1Tuple(7)
	cbf.Insert(k)
	cbf.Insert(k) // counters stay put: no slot of k is zero anymore

	cbf.Remove(k)
	require.False(t, cbf.Lookup(k), "key survives one removal after double insert")
}

func TestCountingBloomFilterRemove(t *testing.T) {
	hash.ResetSeed(12)
	cbf, err := NewCountingBloomFilter(1<<14, 3, 8)
	require.NoError(t, err)

	a := flowkey.From1Tuple(100)
	b := flowkey.From1Tuple(200)
	cbf.Insert(a)
	cbf.Insert(b)

	cbf.Remove(a)
	require.False(t, cbf.Lookup(a))
	require.True(t, cbf.Lookup(b), "removal of a disturbed b")

	// Removing an absent key is a no-op.
	cbf.Remove(flowkey.From1Tuple(300))
	require.True(t, cbf.Lookup(b))
}

func TestCountingBloomFilterClear(t *testing.T) {
	hash.ResetSeed(13)
	cbf, err := NewCountingBloomFilter(1024, 3, 8)
	require.NoError(t, err)

	k := flowkey.From1Tuple(1)
	cbf.Insert(k)
	cbf.Clear()
	require.False(t, cbf.Lookup(k))
}
