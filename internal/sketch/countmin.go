package sketch

import (
	"math"

	"github.com/pkg/errors"

	"SketchSpectra/pkg/flowkey"
	"SketchSpectra/pkg/hash"
	"SketchSpectra/pkg/util"
)

// CMSketch is a depth x width Count-Min: updates add to one counter per
// row, queries take the row-wise minimum. The width is rounded up to the
// next prime.
type CMSketch struct {
	Base
	depth   int
	width   int
	hashes  []hash.Hasher
	counter [][]int64
}

// NewCMSketch builds a Count-Min of the given depth and width.
func NewCMSketch(depth, width int) (*CMSketch, error) {
	if depth <= 0 || width <= 0 {
		return nil, errors.Wrapf(ErrBadArgument, "count-min of depth %d, width %d", depth, width)
	}
	c := &CMSketch{
		depth:  depth,
		width:  util.NextPrime(width),
		hashes: make([]hash.Hasher, depth),
	}
	for i := range c.hashes {
		c.hashes[i] = hash.NewAware()
	}
	c.counter = make([][]int64, depth)
	backing := make([]int64, depth*c.width)
	for i := range c.counter {
		c.counter[i] = backing[i*c.width : (i+1)*c.width]
	}
	return c, nil
}

// Update adds val to one counter per row.
func (c *CMSketch) Update(k flowkey.Key, val int64) {
	for i, fn := range c.hashes {
		c.counter[i][fn.Hash(k)%uint64(c.width)] += val
	}
}

// Query returns the minimum across the rows.
func (c *CMSketch) Query(k flowkey.Key) int64 {
	min := int64(math.MaxInt64)
	for i, fn := range c.hashes {
		if v := c.counter[i][fn.Hash(k)%uint64(c.width)]; v < min {
			min = v
		}
	}
	return min
}

// Size reports the counter array plus the hash vector.
func (c *CMSketch) Size() int {
	return c.depth*c.width*8 + c.depth*hash.SizeOf
}

// Clear resets the counters.
func (c *CMSketch) Clear() {
	for i := range c.counter {
		for j := range c.counter[i] {
			c.counter[i][j] = 0
		}
	}
}
