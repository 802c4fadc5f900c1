package flowkey

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	for _, n := range []int{Len1Tuple, Len2Tuple, Len5Tuple} {
		k, err := New(n)
		require.NoError(t, err)
		require.Equal(t, n, k.Len())
		require.True(t, k.IsZero())
	}
	for _, n := range []int{0, 3, 5, 12, 16} {
		_, err := New(n)
		require.True(t, errors.Is(err, ErrMismatch), "length %d", n)
	}
}

func TestTupleAccessors(t *testing.T) {
	k := From5Tuple(0x0a000001, 0x0a000002, 80, 443, 6)

	src, err := k.SrcIP()
	require.NoError(t, err)
	require.EqualValues(t, 0x0a000001, src)
	dst, err := k.DstIP()
	require.NoError(t, err)
	require.EqualValues(t, 0x0a000002, dst)
	sp, err := k.SrcPort()
	require.NoError(t, err)
	require.EqualValues(t, 80, sp)
	dp, err := k.DstPort()
	require.NoError(t, err)
	require.EqualValues(t, 443, dp)
	proto, err := k.Protocol()
	require.NoError(t, err)
	require.EqualValues(t, 6, proto)

	// Accessors reject the wrong shape.
	_, err = k.IP()
	require.True(t, errors.Is(err, ErrMismatch))
	one := From1Tuple(0x7f000001)
	_, err = one.SrcPort()
	require.True(t, errors.Is(err, ErrMismatch))
	ip, err := one.IP()
	require.NoError(t, err)
	require.EqualValues(t, 0x7f000001, ip)
}

func TestEqualityAndOrder(t *testing.T) {
	a := From2Tuple(1, 2)
	b := From2Tuple(1, 2)
	c := From2Tuple(1, 3)

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
	require.True(t, a.Less(c) != c.Less(a))
	require.False(t, a.Less(b))
	require.False(t, b.Less(a))
}

func TestBits(t *testing.T) {
	k, _ := New(Len1Tuple)
	require.NoError(t, k.SetBit(0, true))
	require.NoError(t, k.SetBit(9, true))
	require.NoError(t, k.SetBit(31, true))

	for pos, want := range map[int]byte{0: 1, 1: 0, 9: 1, 8: 0, 31: 1} {
		got, err := k.Bit(pos)
		require.NoError(t, err)
		require.Equal(t, want, got, "bit %d", pos)
	}
	require.Equal(t, Key{0x01, 0x02, 0x00, 0x80}, k)

	require.NoError(t, k.SetBit(9, false))
	bit, _ := k.Bit(9)
	require.EqualValues(t, 0, bit)

	_, err := k.Bit(32)
	require.True(t, errors.Is(err, ErrOutOfRange))
	require.True(t, errors.Is(k.SetBit(32, true), ErrOutOfRange))
	_, err = k.Bit(-1)
	require.True(t, errors.Is(err, ErrOutOfRange))
}

func TestCopyRanges(t *testing.T) {
	src := From5Tuple(0x11111111, 0x22222222, 0x3333, 0x4444, 0x55)
	dst, _ := New(Len2Tuple)

	require.NoError(t, dst.CopyFrom(0, src, 4, 4))
	require.Equal(t, Key{0x22, 0x22, 0x22, 0x22, 0, 0, 0, 0}, dst)

	require.True(t, errors.Is(dst.CopyFrom(5, src, 0, 4), ErrOutOfRange))
	require.True(t, errors.Is(dst.CopyFrom(0, src, 10, 4), ErrOutOfRange))
	require.True(t, errors.Is(dst.CopyFrom(-1, src, 0, 2), ErrOutOfRange))
	require.True(t, errors.Is(dst.CopyBytes(7, []byte{1, 2}), ErrOutOfRange))
}

func TestXor(t *testing.T) {
	a := From1Tuple(0xf0f0f0f0)
	b := From1Tuple(0x0f0f0f0f)
	require.NoError(t, a.Xor(b))
	ip, _ := a.IP()
	require.EqualValues(t, 0xffffffff, ip)

	// Xor-ing a key with itself zeroes it.
	c := a.Clone()
	require.NoError(t, a.Xor(c))
	require.True(t, a.IsZero())

	short, _ := New(Len2Tuple)
	require.True(t, errors.Is(a.Xor(short), ErrMismatch))
}
