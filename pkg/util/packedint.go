package util

import (
	"github.com/pkg/errors"
)

var (
	// ErrBadWidth reports an illegal packed-counter width.
	ErrBadWidth = errors.New("util: packed counter width out of range")
	// ErrOverflow reports an update larger than the carry arithmetic can
	// interpret.
	ErrOverflow = errors.New("util: update magnitude too large")
)

// updateBound is the largest update magnitude whose carry is still
// unambiguous: 2^62 - 1 for a 64-bit counter.
const updateBound = int64(1)<<62 - 1

// PackedInt holds a non-negative counter of a run-time width in bits.
// Additions return the carry (or borrow) in units of 2^width; the residual
// low bits stay in the counter.
type PackedInt struct {
	val  int64
	bits int
}

// NewPackedInt builds a counter of the given width. The width must be in
// (0, 63).
func NewPackedInt(bits int) (PackedInt, error) {
	if bits <= 0 || bits >= 63 {
		return PackedInt{}, errors.Wrapf(ErrBadWidth, "want 0 < width < 63, got %d", bits)
	}
	return PackedInt{bits: bits}, nil
}

// Value returns the residue kept in the counter.
func (p *PackedInt) Value() int64 { return p.val }

// Width returns the counter width in bits.
func (p *PackedInt) Width() int { return p.bits }

// Reset clears the residue.
func (p *PackedInt) Reset() { p.val = 0 }

// Add applies delta and returns how many times the counter wrapped, positive
// on overflow and negative on borrow. |delta| must not exceed 2^62 - 1.
func (p *PackedInt) Add(delta int64) (int64, error) {
	width := int64(1) << p.bits

	if delta >= 0 {
		if delta > updateBound {
			return 0, errors.Wrapf(ErrOverflow, "delta %d", delta)
		}
		over := delta >> p.bits
		sum := p.val + (delta & (width - 1))
		p.val = sum % width
		return over + sum/width, nil
	}

	if delta < -updateBound {
		return 0, errors.Wrapf(ErrOverflow, "delta %d", delta)
	}
	neg := -delta
	negOver := neg >> p.bits
	sum := width + p.val - (neg & (width - 1))
	p.val = sum % width
	return -(negOver + 1 - sum/width), nil
}
