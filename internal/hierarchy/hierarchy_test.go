package hierarchy

import (
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"SketchSpectra/pkg/hash"
)

// testHash replaces the seeded family with a deterministic one: instances
// are numbered in construction order and map an 8-byte index to identity,
// +1, identity, and +1-unless-2 respectively.
type testHash struct {
	seed int
}

func newTestHashFactory() func() hash.Hasher {
	seed := 0
	return func() hash.Hasher {
		h := &testHash{seed: seed}
		seed++
		return h
	}
}

func (h *testHash) Hash(p []byte) uint64 {
	cnt := binary.NativeEndian.Uint64(p)
	switch h.seed % 4 {
	case 0, 2:
		return cnt
	case 1:
		return cnt + 1
	default:
		if cnt == 2 {
			return cnt
		}
		return cnt + 1
	}
}

func newTestCH(t *testing.T) *Hierarchy {
	t.Helper()
	ch, err := NewWithHasher([]int{7, 5, 3}, []int{10, 10, 10}, []int{2, 2}, newTestHashFactory())
	require.NoError(t, err)
	return ch
}

func mustCount(t *testing.T, ch *Hierarchy, i int) int64 {
	t.Helper()
	v, err := ch.Count(i)
	require.NoError(t, err)
	return v
}

func TestHierarchyRoundTrip(t *testing.T) {
	ch := newTestCH(t)
	a := []int64{3309568, 356352001, 163842, 10243, 1028, 5, 6}

	for i := range a {
		require.NoError(t, ch.Update(i, a[i]%10))
	}
	for i := range a {
		require.Equal(t, a[i]%10, mustCount(t, ch, i))
	}
	for j := int64(0); j < 10; j++ {
		for i := range a {
			require.NoError(t, ch.Update(i, a[i]/10))
		}
		for i := range a {
			require.Equal(t, a[i]%10+a[i]/10*(j+1), mustCount(t, ch, i))
			orig, err := ch.OriginalAt(i)
			require.NoError(t, err)
			require.Equal(t, a[i]%10+a[i]/10*(j+1), orig)
		}
	}
	for i := range a {
		require.Equal(t, a[i], mustCount(t, ch, i))
	}
}

func TestHierarchyNegativeUpdates(t *testing.T) {
	ch := newTestCH(t)
	a := []int64{3305086, 3568800, 14322, 10243, 10238, 125, 216}

	for j := 0; j < 5; j++ {
		for i := range a {
			require.NoError(t, ch.Update(i, a[i]/5))
		}
	}
	for i := range a {
		require.NoError(t, ch.Update(i, a[i]))
	}
	for i := range a {
		require.NoError(t, ch.Update(i, -a[i]+a[i]%5))
	}
	for i := range a {
		require.Equal(t, a[i], mustCount(t, ch, i))
		orig, _ := ch.OriginalAt(i)
		require.Equal(t, a[i], orig)
	}
}

func TestHierarchyClear(t *testing.T) {
	ch := newTestCH(t)
	a := []int64{1086, 1321, 22, 10243, 10238, 1124, 1216}

	for j := 0; j < 5; j++ {
		for i := range a {
			require.NoError(t, ch.Update(i, a[i]/5))
		}
	}
	for i := range a {
		require.Equal(t, a[i]/5*5, mustCount(t, ch, i))
	}

	ch.Clear()
	for i := range a {
		require.NoError(t, ch.Update(i, a[i]))
	}
	for i := range a {
		require.Equal(t, a[i], mustCount(t, ch, i))
	}
	for i := range a {
		require.NoError(t, ch.Update(i, -a[i]+a[i]%5))
	}
	for i := range a {
		require.Equal(t, a[i]%5, mustCount(t, ch, i))
	}
}

func TestHierarchyCachedRead(t *testing.T) {
	ch := newTestCH(t)
	require.NoError(t, ch.Update(3, 12345))

	first := mustCount(t, ch, 3)
	second := mustCount(t, ch, 3)
	require.Equal(t, first, second)
	require.EqualValues(t, 12345, first)
}

func TestHierarchyShadowMatchesSmallValues(t *testing.T) {
	// Updates below the layer-0 residue capacity never overflow; the read
	// must equal the shadow exactly.
	ch := newTestCH(t)
	small := []int64{1, 1000, 512, 3, 1023, 7, 0}
	for i, v := range small {
		require.NoError(t, ch.Update(i, v))
	}
	for i := range small {
		orig, _ := ch.OriginalAt(i)
		require.Equal(t, orig, mustCount(t, ch, i))
	}
}

func TestHierarchyTopLayerOverflow(t *testing.T) {
	ch := newTestCH(t)
	a := []int64{1048576, 357564416, 0, 0, 0, 0, 0}

	for j := 0; j < 10; j++ {
		for i := range a {
			require.NoError(t, ch.Update(i, a[i]/10))
		}
	}
	for i := range a {
		require.NoError(t, ch.Update(i, 5))
	}
	require.NoError(t, ch.Update(0, 1))
	_, err := ch.Count(0)
	require.NoError(t, err)

	require.NoError(t, ch.Update(1, 1))
	_, err = ch.Count(0)
	require.True(t, errors.Is(err, ErrCounterOverflow))
}

func TestHierarchyOutOfRange(t *testing.T) {
	ch := newTestCH(t)
	require.True(t, errors.Is(ch.Update(7, 1), ErrOutOfRange))
	require.True(t, errors.Is(ch.Update(-1, 1), ErrOutOfRange))
	_, err := ch.Count(7)
	require.True(t, errors.Is(err, ErrOutOfRange))
}

func TestHierarchyMisconfigured(t *testing.T) {
	factory := newTestHashFactory()
	cases := []struct {
		noCnt, widthCnt, noHash []int
	}{
		{[]int{}, []int{3}, []int{}},
		{[]int{3, 5}, []int{3}, []int{2}},
		{[]int{3, 5}, []int{3, 4}, []int{2, 3, 4}},
		{[]int{100, 50, 0}, []int{20, 5, 5}, []int{2, 3}},
		{[]int{100, 50, 10}, []int{20, 0, 5}, []int{2, 3}},
		{[]int{100, 50, 10}, []int{20, 5, 5}, []int{0, 3}},
		{[]int{100, 5}, []int{40, 32}, []int{2}}, // widths exceed 64 bits
	}
	for i, c := range cases {
		_, err := NewWithHasher(c.noCnt, c.widthCnt, c.noHash, factory)
		require.True(t, errors.Is(err, ErrMisconfigured), "case %d", i)
	}
}

func TestHierarchySize(t *testing.T) {
	ch := newTestCH(t)
	// 7*11 + 5*11 + 3*11 bits = 165 bits -> 21 bytes, plus 4 hashes.
	require.Equal(t, 21+4*hash.SizeOf, ch.Size())
	require.Equal(t, 7*8, ch.OriginalSize())
}
