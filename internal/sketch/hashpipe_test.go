package sketch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"SketchSpectra/pkg/flowkey"
	"SketchSpectra/pkg/hash"
)

func TestHashPipeNeverOverestimates(t *testing.T) {
	hash.ResetSeed(50)
	hp, err := NewHashPipe(flowkey.Len1Tuple, 4, 1024)
	require.NoError(t, err)

	keys, truth := zipfStream(20000, 500, 4)
	for _, k := range keys {
		hp.Update(k, 1)
	}
	// Evicted pairs that fall off the pipe are dropped, never duplicated,
	// so the estimate is at most the exact count.
	for id, want := range truth {
		got := hp.Query(flowkey.From1Tuple(id))
		require.LessOrEqual(t, got, want, "flow %d overestimated", id)
	}
}

func TestHashPipeSingleFlowExact(t *testing.T) {
	hash.ResetSeed(51)
	hp, err := NewHashPipe(flowkey.Len5Tuple, 3, 128)
	require.NoError(t, err)

	k := flowkey.From5Tuple(1, 2, 3, 4, 6)
	for i := 0; i < 100; i++ {
		hp.Update(k, 3)
	}
	require.EqualValues(t, 300, hp.Query(k))
}

func TestHashPipeHeavyHitters(t *testing.T) {
	hash.ResetSeed(52)
	hp, err := NewHashPipe(flowkey.Len1Tuple, 4, 4096)
	require.NoError(t, err)

	keys, truth := zipfStream(20000, 200, 5)
	for _, k := range keys {
		hp.Update(k, 1)
	}

	est := hp.HeavyHitters(1000)
	for _, e := range est.Entries() {
		require.GreaterOrEqual(t, e.Value, int64(1000))
	}
	// With far fewer flows than slots, the heaviest flow survives intact
	// and must be reported.
	var topID uint32
	var topCount int64
	for id, v := range truth {
		if v > topCount {
			topID, topCount = id, v
		}
	}
	if topCount >= 1000 {
		require.Equal(t, 1, est.Count(flowkey.From1Tuple(topID)))
	}
}

func TestHashPipeHeavyChangers(t *testing.T) {
	hash.ResetSeed(53)
	hp1, err := NewHashPipe(flowkey.Len1Tuple, 4, 4096)
	require.NoError(t, err)
	hp2, err := NewHashPipe(flowkey.Len1Tuple, 4, 4096)
	require.NoError(t, err)

	// Flow 1 is stable, flow 2 swings by 500.
	for i := 0; i < 600; i++ {
		hp1.Update(flowkey.From1Tuple(1), 1)
		hp2.Update(flowkey.From1Tuple(1), 1)
	}
	for i := 0; i < 500; i++ {
		hp1.Update(flowkey.From1Tuple(2), 1)
	}

	est := hp1.HeavyChangers(hp2, 400)
	require.Equal(t, 1, est.Count(flowkey.From1Tuple(2)))
	require.Equal(t, 0, est.Count(flowkey.From1Tuple(1)))
}

func TestHashPipeEvictionPrefersLargerValues(t *testing.T) {
	hash.ResetSeed(54)
	hp, err := NewHashPipe(flowkey.Len1Tuple, 2, 8)
	require.NoError(t, err)

	// A heavy flow followed by a burst of one-off keys: the heavy count
	// may move between stages but only a strictly smaller occupant is
	// displaced, so its total is never diluted below the singles.
	heavy := flowkey.From1Tuple(0xBEEF)
	for i := 0; i < 50; i++ {
		hp.Update(heavy, 1)
	}
	for i := uint32(0); i < 8; i++ {
		hp.Update(flowkey.From1Tuple(i), 1)
	}
	require.LessOrEqual(t, hp.Query(heavy), int64(50))
}

func TestHashPipeClear(t *testing.T) {
	hash.ResetSeed(55)
	hp, err := NewHashPipe(flowkey.Len1Tuple, 2, 64)
	require.NoError(t, err)
	hp.Update(flowkey.From1Tuple(9), 4)
	hp.Clear()
	require.EqualValues(t, 0, hp.Query(flowkey.From1Tuple(9)))
}
