package sketch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"SketchSpectra/pkg/flowkey"
	"SketchSpectra/pkg/hash"
)

func TestCHCMSketchMatchesTruthWhenWide(t *testing.T) {
	hash.ResetSeed(30)
	cm, err := NewCHCMSketch(3, 4096, 0.5, []int{10, 10, 10}, []int{3, 3})
	require.NoError(t, err)

	truth := map[uint32]int64{1: 100, 2: 2048, 3: 77, 4: 70000}
	for id, v := range truth {
		cm.Update(flowkey.From1Tuple(id), v)
	}
	// Four flows in 4099 columns: collisions are practically impossible,
	// so the CH-backed estimate is the exact count even though every
	// counter above 1024 overflowed into the hierarchy.
	for id, want := range truth {
		require.Equal(t, want, cm.Query(flowkey.From1Tuple(id)))
	}
}

func TestCHCMSketchNeverUnderestimates(t *testing.T) {
	hash.ResetSeed(31)
	cm, err := NewCHCMSketch(3, 256, 0.5, []int{12, 12, 16}, []int{3, 3})
	require.NoError(t, err)

	keys, truth := zipfStream(5000, 200, 2)
	for _, k := range keys {
		cm.Update(k, 1)
	}
	for id, want := range truth {
		got := cm.Query(flowkey.From1Tuple(id))
		require.GreaterOrEqual(t, got, want, "flow %d underestimated", id)
	}
}

func TestCHCMSketchRatio(t *testing.T) {
	hash.ResetSeed(32)
	cm, err := NewCHCMSketch(3, 1024, 0.1, []int{8, 8, 16}, []int{2, 2})
	require.NoError(t, err)

	ratio := cm.CompressionRatio()
	require.Greater(t, ratio, 0.0)
	require.Less(t, ratio, 1.0, "narrow layers should undercut the plain 64-bit array")
}

func TestCHCMSketchBadArgs(t *testing.T) {
	_, err := NewCHCMSketch(3, 1024, 1.5, []int{10, 10}, []int{2})
	require.Error(t, err)
	_, err = NewCHCMSketch(3, 1024, 0.5, []int{10, 10}, []int{2, 2})
	require.Error(t, err)
	_, err = NewCHCMSketch(0, 1024, 0.5, []int{10}, nil)
	require.Error(t, err)
}
